// Package docs registers the OpenAPI document served under /swagger/.
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
        "/login": {
            "post": {
                "description": "Exchange the dashboard passphrase for a session cookie",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "responses": {
                    "200": {"description": "Session created"},
                    "401": {"description": "Wrong passphrase"}
                }
            }
        },
        "/logout": {
            "post": {
                "tags": ["auth"],
                "summary": "Log out",
                "responses": {"204": {"description": "Session dropped"}}
            }
        },
        "/status": {
            "get": {
                "description": "Loaded and missing tables of the current snapshot",
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Data status",
                "responses": {"200": {"description": "Load report"}}
            }
        },
        "/overview": {
            "get": {
                "description": "Headline metrics, signup trends, retention curves and cohorts for the filtered view",
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Overview",
                "parameters": [
                    {"type": "string", "description": "Start date (YYYY-MM-DD)", "name": "from", "in": "query"},
                    {"type": "string", "description": "End date (YYYY-MM-DD)", "name": "to", "in": "query"},
                    {"type": "string", "description": "Plan", "name": "plan", "in": "query"}
                ],
                "responses": {"200": {"description": "Overview"}, "400": {"description": "Invalid filter"}}
            }
        },
        "/funnel": {
            "get": {
                "description": "Stage funnel, six-column flow diagram and time-by-stage correlation",
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Funnel",
                "responses": {"200": {"description": "Funnel"}, "400": {"description": "Invalid filter"}}
            }
        },
        "/companies": {
            "get": {
                "description": "Filtered company table, newest signups first",
                "produces": ["application/json"],
                "tags": ["companies"],
                "summary": "Company table",
                "responses": {"200": {"description": "Company rows"}, "400": {"description": "Invalid filter"}}
            }
        },
        "/companies/export": {
            "get": {
                "description": "CSV download of the filtered company table",
                "produces": ["text/csv"],
                "tags": ["companies"],
                "summary": "Export companies",
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/companies/search": {
            "get": {
                "description": "Explorer options ranked by fuzzy match",
                "produces": ["application/json"],
                "tags": ["companies"],
                "summary": "Search companies",
                "parameters": [
                    {"type": "string", "description": "Search text", "name": "q", "in": "query"}
                ],
                "responses": {"200": {"description": "Options"}}
            }
        },
        "/companies/{id}": {
            "get": {
                "description": "Joined row and raw source rows for one company",
                "produces": ["application/json"],
                "tags": ["companies"],
                "summary": "Company detail",
                "parameters": [
                    {"type": "integer", "description": "Company ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "Detail"}, "404": {"description": "Unknown company"}}
            }
        },
        "/loads": {
            "get": {
                "description": "Snapshot build history",
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Load history",
                "responses": {"200": {"description": "Loads"}, "503": {"description": "History disabled"}}
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
	Title:            "Usage Analytics API",
	Description:      "Read-only product usage analytics over exported CSV tables.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
