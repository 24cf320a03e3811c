package mail

import (
	"bytes"
	"fmt"
	"text/template"
)

type tmpl struct {
	subject string
	body    *template.Template
}

var templates = map[Kind]tmpl{
	KindBookApproved: {
		subject: "Book Request Approved",
		body: mustParse("book_approval", `Hello {{.UserName}},

Your request for "{{.BookName}}" has been approved.
You can now collect the book from the library.

Thank you!
`),
	},
	KindBookIssued: {
		subject: "Book Issued",
		body: mustParse("book_issued", `Hello {{.UserName}},

The book "{{.BookName}}" has been issued to you.
Please return the book by: {{.DueDate}}

Thank you!
`),
	},
	KindBookAvailable: {
		subject: "Book Now Available",
		body: mustParse("book_available", `Hello {{.UserName}},

The book "{{.BookName}}" is now available.
You have a pending reservation for this book.

Thank you!
`),
	},
	KindReturnReminder: {
		subject: "Return Reminder",
		body: mustParse("return_reminder", `Hello {{.UserName}},

This is a reminder that the book "{{.BookName}}" is due in 2 days.
Please return the book by: {{.DueDate}}

Thank you!
`),
	},
	KindRenewalApproved: {
		subject: "Book Renewal Approved",
		body: mustParse("renewal_approved", `Hello {{.UserName}},

Your request to renew "{{.BookName}}" has been approved.
The new due date is: {{.DueDate}}

Thank you!
`),
	},
	KindRenewalRejected: {
		subject: "Book Renewal Request Not Approved",
		body: mustParse("renewal_rejected", `Hello {{.UserName}},

We regret to inform you that your request to renew "{{.BookName}}" has not been approved.

Please return the book by the original due date: {{.DueDate}}

If you have any questions, please contact the library.

Thank you for your understanding.
`),
	},
}

func mustParse(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(body))
}

func render(kind Kind, p Payload) (subject, body string, err error) {
	t, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown mail kind %q", kind)
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, p); err != nil {
		return "", "", err
	}
	return t.subject, buf.String(), nil
}
