package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// staticPages maps informational page slugs to their templates.
var staticPages = map[string]string{
	"nosotros":      "about.html",
	"contacto":      "contact.html",
	"privacidad":    "privacy.html",
	"terminos":      "terms.html",
	"envios":        "shipping.html",
	"cuidado-joyas": "care.html",
}

func Home() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/paginas/nosotros")
	}
}

func StaticPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		name, ok := staticPages[c.Param("slug")]
		if !ok {
			c.HTML(http.StatusNotFound, "not_found.html", gin.H{})
			return
		}
		c.HTML(http.StatusOK, name, gin.H{})
	}
}

// PaymentSuccess is the return page of the hosted payment form. The client
// reports completion through POST /checkout/complete with the order id.
func PaymentSuccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "payment_success.html", gin.H{
			"orderId": c.Query("orderId"),
		})
	}
}

func PaymentCancel() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "payment_cancel.html", gin.H{})
	}
}
