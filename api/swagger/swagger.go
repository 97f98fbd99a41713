package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Vikar API",
        "description": "Temporary class-team access grants for substitute teachers",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Substitutions", "description": "Substitution lifecycle"},
        {"name": "Teachers", "description": "Teacher and class-team lookups"},
        {"name": "Schools", "description": "School records and delegations"},
        {"name": "Logs", "description": "Audit log"}
    ],
    "paths": {
        "/substitutions": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "List substitutions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "active", "expired"]},
                    {"name": "teacherUpn", "in": "query", "type": "string"},
                    {"name": "substituteUpn", "in": "query", "type": "string"},
                    {"name": "years", "in": "query", "type": "string", "description": "comma-separated creation years"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Substitutions"],
                "summary": "Request a batch of substitutions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBatchRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/export": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Export substitutions as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/substitutions/deactivate": {
            "put": {
                "tags": ["Substitutions"],
                "summary": "Deactivate substitutions by id",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DeactivateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers": {
            "get": {
                "tags": ["Teachers"],
                "summary": "Search teachers by display name",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "required": true, "type": "string"},
                    {"name": "returnSelf", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teachers/{upn}/teams": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List the class teams a teacher owns",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "upn", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools": {
            "get": {
                "tags": ["Schools"],
                "summary": "List schools",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schools"],
                "summary": "Create a school",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSchoolRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools/{id}/delegations": {
            "put": {
                "tags": ["Schools"],
                "summary": "Replace a school's delegation list",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceDelegationsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/logs": {
            "get": {
                "tags": ["Logs"],
                "summary": "List audit log entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "type": "string", "format": "date-time"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Substitution": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "active", "expired"]},
                "teacherId": {"type": "string"},
                "teacherName": {"type": "string"},
                "teacherUpn": {"type": "string"},
                "substituteId": {"type": "string"},
                "substituteName": {"type": "string"},
                "substituteUpn": {"type": "string"},
                "teamId": {"type": "string"},
                "teamName": {"type": "string"},
                "teamEmail": {"type": "string"},
                "teamSdsId": {"type": "string"},
                "substitutionUpdated": {"type": "integer"},
                "expirationTimestamp": {"type": "string"},
                "createdTimestamp": {"type": "string"},
                "updatedTimestamp": {"type": "string"}
            }
        },
        "SubstitutionEntry": {
            "type": "object",
            "properties": {
                "teacherUpn": {"type": "string"},
                "substituteUpn": {"type": "string"},
                "teamId": {"type": "string"}
            },
            "required": ["teacherUpn", "substituteUpn", "teamId"]
        },
        "CreateBatchRequest": {
            "type": "object",
            "properties": {
                "substitutions": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/SubstitutionEntry"}
                }
            },
            "required": ["substitutions"]
        },
        "DeactivateRequest": {
            "type": "object",
            "properties": {
                "ids": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["ids"]
        },
        "Location": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "CreateSchoolRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "permittedSchools": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Location"}
                }
            },
            "required": ["name"]
        },
        "ReplaceDelegationsRequest": {
            "type": "object",
            "properties": {
                "permittedSchools": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Location"}
                }
            },
            "required": ["permittedSchools"]
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
