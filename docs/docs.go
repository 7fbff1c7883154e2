// Package docs registers the OpenAPI description of the follow-up API with swag
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
        "/cron/follow-up": {
            "get": {
                "security": [{"CronSecret": []}],
                "produces": ["application/json"],
                "tags": ["Follow-up"],
                "summary": "Run the daily nurture job",
                "responses": {
                    "200": {"description": "Run completed", "schema": {"$ref": "#/definitions/dto.NurtureRunResponse"}},
                    "401": {"description": "Unauthorized"},
                    "409": {"description": "Another run holds the lock"},
                    "500": {"description": "Run failed", "schema": {"$ref": "#/definitions/dto.NurtureRunResponse"}}
                }
            }
        },
        "/cron/sms-follow-up": {
            "get": {
                "security": [{"CronSecret": []}],
                "produces": ["application/json"],
                "tags": ["Follow-up"],
                "summary": "Run the SMS follow-up job",
                "responses": {
                    "200": {"description": "Run completed", "schema": {"$ref": "#/definitions/dto.SMSFollowUpResponse"}},
                    "401": {"description": "Unauthorized"},
                    "409": {"description": "Another run holds the lock"},
                    "500": {"description": "Run failed"}
                }
            }
        },
        "/cron/contacts/{uuid}/immediate-follow-up": {
            "post": {
                "security": [{"CronSecret": []}],
                "produces": ["application/json"],
                "tags": ["Follow-up"],
                "summary": "Send immediate follow-up emails for a contact",
                "parameters": [{"type": "string", "description": "Contact UUID", "name": "uuid", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Follow-up processed", "schema": {"$ref": "#/definitions/dto.ImmediateFollowUpResponse"}},
                    "400": {"description": "Invalid contact uuid"},
                    "404": {"description": "Contact not found"}
                }
            }
        },
        "/reports/job-runs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Reports"],
                "summary": "List follow-up job runs",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"},
                    {"type": "string", "name": "job", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Job runs", "schema": {"$ref": "#/definitions/dto.ListJobRunsResponse"}},
                    "400": {"description": "Invalid query"}
                }
            }
        },
        "/reports/follow-up-history.xlsx": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Reports"],
                "summary": "Export follow-up history as a spreadsheet",
                "parameters": [
                    {"type": "string", "format": "date-time", "name": "start_date", "in": "query"},
                    {"type": "string", "format": "date-time", "name": "end_date", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Spreadsheet attachment"},
                    "400": {"description": "Invalid date range"}
                }
            }
        }
    },
    "definitions": {
        "dto.NurtureRunResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "newLeadsProcessed": {"type": "integer"},
                "newLeadEmailsSent": {"type": "integer"},
                "pendingSignaturesProcessed": {"type": "integer"},
                "signatureRemindersSent": {"type": "integer"},
                "errors": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "dto.SMSFollowUpResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "leadsChecked": {"type": "integer"},
                "smsSent": {"type": "integer"},
                "errors": {"type": "integer"}
            }
        },
        "dto.ImmediateFollowUpResponse": {
            "type": "object",
            "properties": {
                "contact_uuid": {"type": "string"},
                "templates_matched": {"type": "integer"},
                "emails_sent": {"type": "integer"},
                "errors": {"type": "integer"},
                "skipped_reason": {"type": "string"}
            }
        },
        "dto.ListJobRunsResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"type": "object"}},
                "pagination": {"type": "object"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "CronSecret": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Home Care Follow-up API",
	Description:      "Scheduled lead nurture, signature reminder and SMS follow-up jobs for home care contacts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
