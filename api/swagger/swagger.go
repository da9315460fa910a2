package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "GradeFlow API",
        "description": "Grade aggregation, report cards and class result exports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Authentication"
        },
        {
            "name": "Grades",
            "description": "Grade entry"
        },
        {
            "name": "ReportCards",
            "description": "Report card assembly and PDF rendering"
        },
        {
            "name": "Files",
            "description": "Signed downloads"
        },
        {
            "name": "Exports",
            "description": "Class result exports"
        },
        {
            "name": "Audit",
            "description": "Audit trail"
        }
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Authenticate user",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/LoginRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Invalid credentials",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/grades": {
            "get": {
                "tags": [
                    "Grades"
                ],
                "summary": "List grades",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "studentId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "classId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "className",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "subjectId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "schoolYear",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "semester",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Grades"
                ],
                "summary": "Create grade",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateGradeRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/grades/bulk": {
            "post": {
                "tags": [
                    "Grades"
                ],
                "summary": "Create several grades atomically",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/BulkCreateGradesRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/grades/{id}": {
            "put": {
                "tags": [
                    "Grades"
                ],
                "summary": "Update grade",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateGradeRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Forbidden",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Grades"
                ],
                "summary": "Delete grade",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "hard",
                        "in": "query",
                        "type": "boolean",
                        "required": false
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/report-cards": {
            "get": {
                "tags": [
                    "ReportCards"
                ],
                "summary": "List report cards",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "studentId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "className",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "schoolYear",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "semester",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/report-cards/generate": {
            "post": {
                "tags": [
                    "ReportCards"
                ],
                "summary": "Generate or regenerate a report card",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/GenerateReportCardRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Student not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Report card finalized",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/report-cards/pdf/bulk": {
            "post": {
                "tags": [
                    "ReportCards"
                ],
                "summary": "Render several report card PDFs",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/BulkReportCardPDFRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/report-cards/{id}": {
            "get": {
                "tags": [
                    "ReportCards"
                ],
                "summary": "Get report card",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "ReportCards"
                ],
                "summary": "Delete report card",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/report-cards/{id}/edits": {
            "put": {
                "tags": [
                    "ReportCards"
                ],
                "summary": "Save manual corrections",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateReportCardEditsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Report card finalized",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/report-cards/{id}/finalize": {
            "post": {
                "tags": [
                    "ReportCards"
                ],
                "summary": "Finalize report card",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Already finalized",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/report-cards/{id}/pdf": {
            "post": {
                "tags": [
                    "ReportCards"
                ],
                "summary": "Render and store the report card PDF",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "502": {
                        "description": "Rendering or storage failed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/files/{token}": {
            "get": {
                "tags": [
                    "Files"
                ],
                "summary": "Download a stored file",
                "produces": [
                    "application/octet-stream"
                ],
                "parameters": [
                    {
                        "name": "token",
                        "in": "path",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File content"
                    },
                    "403": {
                        "description": "Invalid or expired link"
                    },
                    "404": {
                        "description": "Not found"
                    }
                }
            }
        },
        "/exports/class-results": {
            "post": {
                "tags": [
                    "Exports"
                ],
                "summary": "Export class results",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ClassResultsExportRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/audit-logs": {
            "get": {
                "tags": [
                    "Audit"
                ],
                "summary": "List audit logs",
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "userId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "action",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "resource",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Admin only",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": [
                "email",
                "password"
            ],
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "CreateGradeRequest": {
            "type": "object",
            "required": [
                "student_id",
                "subject_id",
                "class_id",
                "school_year",
                "semester",
                "assessment_type",
                "max_grade",
                "weighting"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "subject_id": {
                    "type": "string"
                },
                "class_id": {
                    "type": "string"
                },
                "school_year": {
                    "type": "string"
                },
                "semester": {
                    "type": "string"
                },
                "assessment_name": {
                    "type": "string"
                },
                "assessment_type": {
                    "type": "string"
                },
                "grade": {
                    "type": "number"
                },
                "max_grade": {
                    "type": "number"
                },
                "weighting": {
                    "type": "number"
                },
                "appreciation": {
                    "type": "string"
                },
                "teacher_id": {
                    "type": "string"
                }
            }
        },
        "BulkCreateGradesRequest": {
            "type": "object",
            "properties": {
                "grades": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/CreateGradeRequest"
                    }
                }
            }
        },
        "UpdateGradeRequest": {
            "type": "object",
            "properties": {
                "assessment_name": {
                    "type": "string"
                },
                "assessment_type": {
                    "type": "string"
                },
                "grade": {
                    "type": "number"
                },
                "max_grade": {
                    "type": "number"
                },
                "weighting": {
                    "type": "number"
                },
                "appreciation": {
                    "type": "string"
                }
            }
        },
        "GenerateReportCardRequest": {
            "type": "object",
            "required": [
                "student_id",
                "school_year",
                "semester"
            ],
            "properties": {
                "student_id": {
                    "type": "string"
                },
                "school_year": {
                    "type": "string"
                },
                "semester": {
                    "type": "string"
                },
                "class_name": {
                    "type": "string"
                }
            }
        },
        "UpdateReportCardEditsRequest": {
            "type": "object",
            "required": [
                "edited_data"
            ],
            "properties": {
                "edited_data": {
                    "type": "object"
                }
            }
        },
        "BulkReportCardPDFRequest": {
            "type": "object",
            "required": [
                "ids"
            ],
            "properties": {
                "ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "ClassResultsExportRequest": {
            "type": "object",
            "required": [
                "class_name",
                "school_year",
                "semester",
                "format"
            ],
            "properties": {
                "class_name": {
                    "type": "string"
                },
                "school_year": {
                    "type": "string"
                },
                "semester": {
                    "type": "string"
                },
                "format": {
                    "type": "string",
                    "enum": [
                        "csv",
                        "xlsx",
                        "pdf"
                    ]
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
