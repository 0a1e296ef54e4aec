package model

// MailJob is one templated email waiting to be delivered. Jobs are queued so
// that a slow or failing SMTP server never blocks or fails the request that
// produced them.
type MailJob struct {
	Template  string            `json:"template"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Merge     map[string]string `json:"merge,omitempty"`
}
