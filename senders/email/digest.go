package email

import (
	"fmt"

	"github.com/matcornic/hermes/v2"
)

type DigestEntry struct {
	PlatformLabel string
	ServiceLabel  string
	VersionLabel  string
}

// DigestFormat is the periodic summary of version changes on the services a
// user follows. Entries are rendered in the order given.
type DigestFormat struct {
	Recipient        string
	Added            []DigestEntry
	Deprecated       []DigestEntry
	SubscriptionsURL string
	Pixel            string
}

func (f *DigestFormat) Key() string {
	return "notification"
}

func (f *DigestFormat) Subject() string {
	return "Versionwatch - New service versions updates"
}

func (f *DigestFormat) PixelURL() string {
	return f.Pixel
}

func (f *DigestFormat) Body() hermes.Email {
	rows := make([][]hermes.Entry, 0, len(f.Added)+len(f.Deprecated))
	for _, e := range f.Added {
		rows = append(rows, digestRow("New", e))
	}
	for _, e := range f.Deprecated {
		rows = append(rows, digestRow("Deprecated", e))
	}

	return hermes.Email{
		Body: hermes.Body{
			Name: f.Recipient,
			Intros: []string{
				"The services you follow have changed since our last update.",
			},
			Dictionary: []hermes.Entry{
				{Key: "New versions", Value: fmt.Sprint(len(f.Added))},
				{Key: "Deprecated versions", Value: fmt.Sprint(len(f.Deprecated))},
			},
			Table: hermes.Table{
				Data: rows,
				Columns: hermes.Columns{
					CustomWidth: map[string]string{
						"Status": "15%",
					},
					CustomAlignment: map[string]string{
						"Version": "right",
					},
				},
			},
			Actions: []hermes.Action{
				{
					Instructions: "Unsubscribe or update your subscriptions",
					Button: hermes.Button{
						Color:     "#22BC66",
						TextColor: "#FFFFFF",
						Text:      "Manage subscriptions",
						Link:      f.SubscriptionsURL,
					},
				},
			},
			Outros: []string{
				"You are receiving this because you subscribed to these services on Versionwatch.",
			},
		},
	}
}

func digestRow(status string, e DigestEntry) []hermes.Entry {
	return []hermes.Entry{
		{Key: "Status", Value: status},
		{Key: "Platform", Value: e.PlatformLabel},
		{Key: "Service", Value: e.ServiceLabel},
		{Key: "Version", Value: e.VersionLabel},
	}
}
