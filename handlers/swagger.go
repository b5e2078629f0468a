package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>dokstore Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the document API.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "dokstore", "version": "v0.1.0" },
  "paths": {
    "/api/types": {
      "post": { "summary": "Create a document type", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"}}}}}}, "responses": { "201": { "description": "type created" }, "409": { "description": "duplicate name" } } }
    },
    "/api/types/{id}": {
      "get": { "summary": "Get a document type", "responses": { "200": { "description": "type" }, "404": { "description": "not found" } } }
    },
    "/api/documents": {
      "post": { "summary": "Create a document (multipart: name, typeId, file)", "responses": { "201": { "description": "document created; preview generation queued" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document version", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete the unprotected head of a chain", "responses": { "204": { "description": "deleted" }, "409": { "description": "not the chain head" }, "423": { "description": "protected" } } }
    },
    "/api/documents/{id}/replace": {
      "post": { "summary": "Create the next version (multipart: file, optional name)", "responses": { "201": { "description": "new head created" }, "409": { "description": "not the chain head" }, "423": { "description": "protected" } } }
    },
    "/api/documents/{id}/chain": {
      "get": { "summary": "Full version chain, oldest first", "responses": { "200": { "description": "chain" } } }
    },
    "/api/documents/{id}/head": {
      "get": { "summary": "Current head of the chain", "responses": { "200": { "description": "head document" } } }
    },
    "/api/documents/{id}/events": {
      "get": { "summary": "Audit trail, oldest first", "responses": { "200": { "description": "events" } } }
    },
    "/api/documents/{id}/file": {
      "get": { "summary": "Download the original file", "responses": { "200": { "description": "file bytes" } } }
    },
    "/api/documents/{id}/preview": {
      "get": { "summary": "Preview JPEG", "responses": { "200": { "description": "image" }, "202": { "description": "generation pending" }, "404": { "description": "no preview" } } },
      "post": { "summary": "Queue preview regeneration (?force=true to redo a ready preview)", "responses": { "202": { "description": "queued" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
