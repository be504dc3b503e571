// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/messages/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["messages"],
                "summary": "Delete a message",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Message deleted"},
                    "403": {"description": "Not the author", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Message not found", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "List notifications",
                "parameters": [
                    {"type": "boolean", "name": "is_read", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.NotificationListResponse"}}
                }
            }
        },
        "/notifications/mark-read": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["notifications"],
                "summary": "Mark notifications as read",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.MarkReadRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MarkReadResponse"}}
                }
            }
        },
        "/rooms/{id}/subscription": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["subscriptions"],
                "summary": "Group chat subscription status",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SubscriptionStatus"}}
                }
            }
        },
        "/rooms/{id}/subscribe": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["subscriptions"],
                "summary": "Subscribe to group chat notifications",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SubscriptionStatus"}}
                }
            }
        },
        "/rooms/{id}/unsubscribe": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["subscriptions"],
                "summary": "Unsubscribe from group chat notifications",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SubscriptionStatus"}}
                }
            }
        },
        "/rooms/{id}/mute": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["subscriptions"],
                "summary": "Mute or unmute a group chat subscription",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.MuteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SubscriptionStatus"}}
                }
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "models.MarkReadRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "integer"}},
                "all": {"type": "boolean"}
            }
        },
        "models.MarkReadResponse": {
            "type": "object",
            "properties": {
                "updated": {"type": "integer"},
                "unread_count": {"type": "integer"}
            }
        },
        "models.MuteRequest": {
            "type": "object",
            "properties": {
                "muted": {"type": "boolean"}
            }
        },
        "models.Notification": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "type": {"type": "string"},
                "payload": {"type": "object"},
                "is_read": {"type": "boolean"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.NotificationListResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/models.Notification"}},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "models.SubscriptionStatus": {
            "type": "object",
            "properties": {
                "room_id": {"type": "integer"},
                "subscribed": {"type": "boolean"},
                "muted": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Realtime Chat Service API",
	Description:      "Realtime room channels, presence and notification fanout",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
