package mail

import (
	"context"
	"fmt"
	"strings"
)

// Notifier renders the storefront's transactional mails.
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, name, link string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", greetingName(name))
	b.WriteString("Recibimos una solicitud para restablecer tu contraseña.\n")
	fmt.Fprintf(&b, "Abre este enlace para elegir una nueva:\n\n%s\n\n", link)
	b.WriteString("Si no fuiste tú, puedes ignorar este correo.\n")
	return n.sender.Send(ctx, to, "Restablece tu contraseña", b.String())
}

func (n *Notifier) SendNewsletterWelcome(ctx context.Context, to, unsubscribeLink string) error {
	var b strings.Builder
	b.WriteString("¡Gracias por suscribirte a nuestro boletín!\n\n")
	b.WriteString("Te avisaremos de nuevas colecciones y ofertas.\n\n")
	fmt.Fprintf(&b, "Para dejar de recibir correos: %s\n", unsubscribeLink)
	return n.sender.Send(ctx, to, "Bienvenida al boletín", b.String())
}

func (n *Notifier) SendOrderConfirmation(ctx context.Context, to, name, orderID, total string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", greetingName(name))
	fmt.Fprintf(&b, "Recibimos tu pedido %s por un total de %s MXN.\n", orderID, total)
	b.WriteString("Te avisaremos cuando salga a envío.\n")
	return n.sender.Send(ctx, to, "Confirmación de pedido "+orderID, b.String())
}

func greetingName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "cliente"
	}
	return name
}
