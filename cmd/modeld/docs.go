package main

// General API documentation annotations for swaggo.
//
// @title           modeld API
// @version         1.0
// @description     Read-only debug HTTP API (health, readiness, status, models, metrics) of the local inference engine.
//
// @contact.name   modeld maintainers
// @contact.url    https://github.com/your-org/modeld
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
