package mail

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressesAcceptStringOrList(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"to":"a@x.io, b@x.io","subject":"s"}`), &m))
	assert.Equal(t, Addresses{"a@x.io", "b@x.io"}, m.To)

	require.NoError(t, json.Unmarshal([]byte(`{"to":["c@x.io"," d@x.io "]}`), &m))
	assert.Equal(t, Addresses{"c@x.io", "d@x.io"}, m.To)

	assert.Error(t, json.Unmarshal([]byte(`{"to":42}`), &m))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"no recipients", Message{Subject: "s", Text: "t"}, false},
		{"no subject", Message{To: Addresses{"a@x.io"}, Text: "t"}, false},
		{"no body", Message{To: Addresses{"a@x.io"}, Subject: "s"}, false},
		{"text only", Message{To: Addresses{"a@x.io"}, Subject: "s", Text: "t"}, true},
		{"html only", Message{To: Addresses{"a@x.io"}, Subject: "s", HTML: "<p>t</p>"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidMessage)
			}
		})
	}
}

func TestValidateReportsFailingField(t *testing.T) {
	m := Message{To: Addresses{"a@x.io"}, Text: "t"}
	err := m.Validate()
	require.ErrorIs(t, err, ErrInvalidMessage)
	assert.Contains(t, err.Error(), "Subject")

	m = Message{To: Addresses{}, Subject: "s", Text: "t"}
	assert.ErrorIs(t, m.Validate(), ErrInvalidMessage, "an empty list is not a recipient")
}

func TestValidateFillsTextFromHTML(t *testing.T) {
	m := Message{To: Addresses{"a@x.io"}, Subject: "s", HTML: "<h1>Wiring due</h1><p>Project <b>Line&nbsp;4</b> &amp; co.</p>"}
	require.NoError(t, m.Validate())
	assert.Equal(t, "Wiring due\nProject Line 4 & co.", m.Text)

	m = Message{To: Addresses{"a@x.io"}, Subject: "s", Text: "kept", HTML: "<p>ignored</p>"}
	require.NoError(t, m.Validate())
	assert.Equal(t, "kept", m.Text)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"blocks", "<div>a</div>\n\n\n\n<div>b</div>", "a\n\nb"},
		{"line break", "line one<br/>line two", "line one\nline two"},
		{"double break", "one<br><br>two", "one\n\ntwo"},
		{"no text", "<img src=x>", ""},
		{
			"style and script dropped",
			"<html><head><style>p { color: red; }</style></head><body><p>Hello</p><script>alert(1)</script></body></html>",
			"Hello",
		},
		{
			"title and comments dropped",
			"<head><title>Reminder</title></head><!-- tracking --><p>Due <em>Friday</em></p>",
			"Due Friday",
		},
		{"list items", "<ul><li>Wiring</li><li>Assembly</li></ul>", "Wiring\nAssembly"},
		{"entities", "<p>5 &lt; 6 &amp;&amp; 7&nbsp;&gt;&nbsp;6</p>", "5 < 6 && 7 > 6"},
		{"plain text", "  just   words  ", "just words"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}
