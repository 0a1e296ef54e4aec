package mailer

const orderConfirmationBody = `Hello {{.name}},

Thank you for your order. Your reference number is {{.reference_number}}.

Total charged: {{.total}}

See you soon!
`

const eventDetailBody = `Hello {{.name}},

You are booked for {{.event}}.

Starts: {{.start_time}}
Ends:   {{.end_time}}

We look forward to seeing you there.
`

const cancelationBody = `Hello {{.name}},

Your reservation for {{.event}} has been canceled.
{{if .refund_amount}}
A refund of {{.refund_amount}} has been issued to your card. It may take a
few business days to appear on your statement.
{{else}}
No refund applies to this cancelation.
{{end}}`

const exchangeBody = `Hello {{.name}},

Your reservation has been moved from {{.old_event}} to {{.new_event}}.
{{if .charged_amount}}
The price difference of {{.charged_amount}} was charged to your card.
{{end}}{{if .refund_amount}}
The price difference of {{.refund_amount}} was refunded to your card.
{{end}}`

const waitQueueSeatFreedBody = `Hello {{.name}},

A seat just freed up for {{.event}} ({{.start_time}}).

You are receiving this because you joined the wait list. Seats are first
come, first served, so book soon if you are still interested.
`
