package email

import (
	"strings"
	"testing"

	"github.com/fiffu/versionwatch/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDigest(t *testing.T) {
	r := NewRenderer(&config.Config{ServerDNS: "https://versionwatch.example"})
	f := &DigestFormat{
		Recipient: "jo@example.com",
		Added: []DigestEntry{
			{PlatformLabel: "AWS", ServiceLabel: "Aurora MySQL (MySQL 5.6 compatible)", VersionLabel: "5.6.10a"},
		},
		Deprecated: []DigestEntry{
			{PlatformLabel: "GCP", ServiceLabel: "GKE", VersionLabel: "1.20"},
		},
		SubscriptionsURL: "https://versionwatch.example/subscriptions",
		Pixel:            "https://versionwatch.example/notifications/abc/pixel.gif",
	}

	html, text, err := r.Render(f)
	require.NoError(t, err)

	for _, want := range []string{"New versions", "Deprecated versions", "Unsubscribe or update your subscriptions", "5.6.10a", "1.20"} {
		assert.Contains(t, html, want)
		assert.Contains(t, text, want)
	}
	assert.Contains(t, html, `<img src="https://versionwatch.example/notifications/abc/pixel.gif"`)
	assert.NotContains(t, text, "pixel.gif")
	assert.True(t, strings.Index(html, "pixel.gif") < strings.LastIndex(html, "</body>"))
}

func TestRenderOperatorAlert(t *testing.T) {
	r := NewRenderer(&config.Config{})

	html, _, err := r.Render(&OperatorAlertFormat{Message: "Error occurred while polling service aws_eks"})
	require.NoError(t, err)
	assert.Contains(t, html, "Error occurred while polling service aws_eks")
	assert.NotContains(t, html, "<img src=\"\"")
}

func TestInjectPixel(t *testing.T) {
	assert.Equal(t, `<p>hi</p><img src="u" width="1" height="1" alt="" style="display:none">`, injectPixel("<p>hi</p>", "u"))
	assert.Equal(t, `<body>x<img src="u" width="1" height="1" alt="" style="display:none"></body>`, injectPixel("<body>x</body>", "u"))
}
