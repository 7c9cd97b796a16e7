package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title rankdesk API
// @version 0.1
// @description SEO agency backend: campaigns, audits and the tasks they produce.
// @contact.name rankdesk maintainers
// @contact.url https://github.com/raysh454/rankdesk
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
