package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Document Services API",
        "description": "Document request lifecycle service for students and administrators",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Requests", "description": "Document request lifecycle"},
        {"name": "Notifications", "description": "Workflow notifications"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a student account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token for a new token pair",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/requests": {
            "post": {
                "tags": ["Requests"],
                "summary": "Submit a document request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/DocumentRequest"}},
                    "422": {"description": "Validation failed"}
                }
            },
            "get": {
                "tags": ["Requests"],
                "summary": "List all requests (admin)",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "requestType", "in": "query", "type": "string"},
                    {"name": "priority", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Admin role required"}
                }
            }
        },
        "/api/v1/requests/my": {
            "get": {
                "tags": ["Requests"],
                "summary": "List the caller's own requests",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Fetch a single request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentRequest"}},
                    "403": {"description": "Not the owner"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/requests/{id}/status": {
            "patch": {
                "tags": ["Requests"],
                "summary": "Update request status (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStatusPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentRequest"}},
                    "409": {"description": "Concurrent modification"}
                }
            }
        },
        "/api/v1/requests/{id}/remarks": {
            "post": {
                "tags": ["Requests"],
                "summary": "Add an admin remark",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddRemarkPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentRequest"}}
                }
            }
        },
        "/api/v1/requests/{id}/reject": {
            "post": {
                "tags": ["Requests"],
                "summary": "Reject a request with a reason",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentRequest"}}
                }
            }
        },
        "/api/v1/requests/{id}/documents": {
            "post": {
                "tags": ["Requests"],
                "summary": "Attach a supporting document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentRequest"}},
                    "422": {"description": "Unsupported file type or size"}
                }
            }
        },
        "/api/v1/requests/stats": {
            "get": {
                "tags": ["Requests"],
                "summary": "Aggregate request counts by status (admin)",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RequestStats"}}
                }
            }
        },
        "/api/v1/requests/export": {
            "get": {
                "tags": ["Requests"],
                "summary": "Generate a CSV or PDF register (admin)",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "requestType", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Signed download link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/requests/export/{token}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Download a previously generated register",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File contents"},
                    "401": {"description": "Expired or invalid token"}
                }
            }
        },
        "/api/v1/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List the caller's notifications",
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/notifications/{id}/read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as read",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Marked"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["email", "password", "full_name"]
        },
        "CreateRequestPayload": {
            "type": "object",
            "properties": {
                "requestType": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "priority": {"type": "string"},
                "correctionDetails": {"$ref": "#/definitions/CorrectionDetails"},
                "documents": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/DocumentReference"}
                }
            },
            "required": ["requestType", "title", "description"]
        },
        "UpdateStatusPayload": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "message": {"type": "string"},
                "expectedCompletionDate": {"type": "string", "format": "date-time"}
            },
            "required": ["status"]
        },
        "AddRemarkPayload": {
            "type": "object",
            "properties": {
                "remark": {"type": "string"}
            },
            "required": ["remark"]
        },
        "RejectPayload": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "CorrectionDetails": {
            "type": "object",
            "properties": {
                "currentValue": {"type": "string"},
                "requestedValue": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "DocumentReference": {
            "type": "object",
            "properties": {
                "fileName": {"type": "string"},
                "fileUrl": {"type": "string"},
                "fileType": {"type": "string"}
            }
        },
        "TimelineEntry": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "message": {"type": "string"},
                "performedBy": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "AdminRemark": {
            "type": "object",
            "properties": {
                "remark": {"type": "string"},
                "addedBy": {"type": "string"},
                "addedAt": {"type": "string", "format": "date-time"}
            }
        },
        "DocumentRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "ownerId": {"type": "string"},
                "requestType": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string"},
                "priority": {"type": "string"},
                "correctionDetails": {"$ref": "#/definitions/CorrectionDetails"},
                "uploadedDocuments": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/DocumentReference"}
                },
                "adminRemarks": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AdminRemark"}
                },
                "timeline": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/TimelineEntry"}
                },
                "rejectionReason": {"type": "string"},
                "expectedCompletionDate": {"type": "string", "format": "date-time"},
                "completedAt": {"type": "string", "format": "date-time"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "RequestStats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "byStatus": {
                    "type": "object",
                    "additionalProperties": {"type": "integer"}
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
