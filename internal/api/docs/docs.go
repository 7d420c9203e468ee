// Package docs registers the OpenAPI description of the sales API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/ingestions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "List ingestion runs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/model.RunSummary"}}
                    }
                }
            },
            "post": {
                "description": "Ingest every file currently in the source directory in the background",
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Start an ingestion run",
                "responses": {
                    "202": {"description": "Run accepted", "schema": {"type": "object"}},
                    "409": {"description": "A run is already active", "schema": {"$ref": "#/definitions/handler.APIError"}}
                }
            }
        },
        "/ingestions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ingestions"],
                "summary": "Get an ingestion run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RunSummary"}},
                    "404": {"description": "Run not found", "schema": {"$ref": "#/definitions/handler.APIError"}}
                }
            }
        },
        "/forecasts": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["forecasts"],
                "summary": "Forecast daily sales",
                "parameters": [
                    {"description": "Model and horizon", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/handler.ForecastRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.ForecastResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handler.APIError"}},
                    "404": {"description": "Model not found", "schema": {"$ref": "#/definitions/handler.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "handler.APIError": {
            "type": "object",
            "properties": {
                "status_code": {"type": "integer"},
                "error_code": {"type": "string"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "handler.ForecastRequest": {
            "type": "object",
            "required": ["model_id"],
            "properties": {
                "model_id": {"type": "string"},
                "horizon": {"type": "integer", "minimum": 0},
                "at": {"type": "array", "items": {"type": "string", "format": "date-time"}}
            }
        },
        "handler.ForecastResponse": {
            "type": "object",
            "properties": {
                "model_id": {"type": "string"},
                "points": {"type": "array", "items": {"$ref": "#/definitions/forecast.Point"}}
            }
        },
        "forecast.Point": {
            "type": "object",
            "properties": {
                "time": {"type": "string", "format": "date-time"},
                "value": {"type": "number"}
            }
        },
        "model.FileOutcome": {
            "type": "object",
            "properties": {
                "file": {"type": "string"},
                "status": {"type": "string", "enum": ["processed", "quarantined"]},
                "destination": {"type": "string"},
                "rows": {"type": "integer"},
                "attempts": {"type": "integer"},
                "error": {"type": "string"},
                "validation": {"type": "string"},
                "duration": {"type": "integer"}
            }
        },
        "model.RunSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "running", "completed", "failed"]},
                "processed": {"type": "integer"},
                "quarantined": {"type": "integer"},
                "rows": {"type": "integer"},
                "error": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"},
                "files": {"type": "array", "items": {"$ref": "#/definitions/model.FileOutcome"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Sales Pipeline API",
	Description:      "Ingestion runs over monthly sales files and daily sales forecasts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
