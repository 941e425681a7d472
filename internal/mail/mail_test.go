package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	to, subject, text string
}

type recordingSender struct {
	sent []sentMessage
}

func (r *recordingSender) Send(_ context.Context, to, subject, text string) error {
	r.sent = append(r.sent, sentMessage{to: to, subject: subject, text: text})
	return nil
}

func TestBuildMessage(t *testing.T) {
	client := NewSendGridClient("key", "tienda@example.com", "Joyería", nil)

	msg, err := client.buildMessage("ana@example.com", "Hola", "a < b")
	require.NoError(t, err)
	assert.Equal(t, "Hola", msg.Subject)
	assert.Equal(t, "tienda@example.com", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "ana@example.com", msg.Personalizations[0].To[0].Address)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, "<pre>a &lt; b</pre>", msg.Content[1].Value)
}

func TestBuildMessage_RequiresConfiguration(t *testing.T) {
	_, err := NewSendGridClient("", "tienda@example.com", "", nil).buildMessage("a@b.mx", "s", "t")
	assert.Error(t, err)

	_, err = NewSendGridClient("key", "", "", nil).buildMessage("a@b.mx", "s", "t")
	assert.Error(t, err)

	_, err = NewSendGridClient("key", "tienda@example.com", "", nil).buildMessage("", "s", "t")
	assert.Error(t, err)
}

func TestNotifier_PasswordReset(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender)

	require.NoError(t, n.SendPasswordReset(context.Background(), "ana@example.com", "", "https://x/r?token=abc"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Restablece tu contraseña", sender.sent[0].subject)
	assert.Contains(t, sender.sent[0].text, "Hola cliente")
	assert.Contains(t, sender.sent[0].text, "https://x/r?token=abc")
}

func TestNotifier_NewsletterWelcome(t *testing.T) {
	sender := &recordingSender{}
	require.NoError(t, NewNotifier(sender).SendNewsletterWelcome(context.Background(), "ana@example.com", "https://x/baja/1"))
	assert.Contains(t, sender.sent[0].text, "https://x/baja/1")
}
