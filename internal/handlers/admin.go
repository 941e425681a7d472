package handlers

import "github.com/gin-gonic/gin"

// Back office shells; data comes from /admin/api behind the role guards.

func AdminLoginPage(c *gin.Context) {
	c.HTML(200, "admin_login.html", gin.H{})
}

func AdminCategoriesPage(c *gin.Context) {
	c.HTML(200, "admin_categories.html", gin.H{})
}

func AdminProductsPage(c *gin.Context) {
	c.HTML(200, "admin_products.html", gin.H{})
}

func AdminOrdersPage(c *gin.Context) {
	c.HTML(200, "admin_orders.html", gin.H{})
}

func AdminUsersPage(c *gin.Context) {
	c.HTML(200, "admin_users.html", gin.H{})
}
