package email

import "github.com/matcornic/hermes/v2"

type OperatorAlertFormat struct {
	Message string
}

func (f *OperatorAlertFormat) Key() string {
	return "notify_operator"
}

func (f *OperatorAlertFormat) Subject() string {
	return "Versionwatch - operator alert"
}

func (f *OperatorAlertFormat) Body() hermes.Email {
	return hermes.Email{
		Body: hermes.Body{
			Title:  "Operator alert",
			Intros: []string{f.Message},
		},
	}
}
