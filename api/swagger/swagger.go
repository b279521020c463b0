package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Schedura Console Gateway",
        "description": "Admin console gateway for the timetable platform",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Console session lifecycle"},
        {"name": "Data Upload", "description": "CSV ingestion workflow"},
        {"name": "Schedules", "description": "Schedule browsing, activation and export"}
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
        "/api/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign in to the console",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Signed in", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign out",
                "responses": {
                    "204": {"description": "Signed out"}
                }
            }
        },
        "/api/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Verify the session and return the profile",
                "responses": {
                    "200": {"description": "Profile", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "No active session"}
                }
            }
        },
        "/api/upload/status": {
            "get": {
                "tags": ["Data Upload"],
                "summary": "Per-category upload status and readiness",
                "responses": {
                    "200": {"description": "Status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/upload": {
            "post": {
                "tags": ["Data Upload"],
                "summary": "Upload one CSV file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "category", "in": "formData", "type": "string"},
                    {"name": "description", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Task created"},
                    "409": {"description": "Dependencies not satisfied"}
                }
            }
        },
        "/api/upload/bulk": {
            "post": {
                "tags": ["Data Upload"],
                "summary": "Upload multiple CSV files in dependency order",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "files", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "202": {"description": "Bulk job queued"}
                }
            }
        },
        "/api/upload/tasks": {
            "get": {
                "tags": ["Data Upload"],
                "summary": "List validation tasks",
                "responses": {
                    "200": {"description": "Tasks", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules with coordinator state",
                "responses": {
                    "200": {"description": "Schedules", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/schedules/current": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Fetch the active schedule with sessions",
                "responses": {
                    "200": {"description": "Schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active schedule"}
                }
            }
        },
        "/api/schedules/generate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Generate a schedule on the platform",
                "responses": {
                    "202": {"description": "Generation started"}
                }
            }
        },
        "/api/schedules/{id}/activate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Activate a schedule",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Activated"}
                }
            }
        },
        "/api/schedules/{id}/export": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Export the weekly timetable as PDF",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "201": {"description": "Signed download token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
