// Package docs registers the OpenAPI description of the newsrank HTTP API
// with swag, which gin-swagger serves under /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

// @title newsrank API
// @version 1.0
// @description AI news relevance scoring, topic classification, deduplication and search.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

func init() {
	swag.Register(swag.Name, &swag.Spec{
		InfoInstanceName: "swagger",
		SwaggerTemplate:  docTemplate,
	})
}

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "newsrank API",
        "description": "AI news relevance scoring, topic classification, deduplication and search",
        "version": "1.0.0",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        }
    },
    "host": "localhost:8080",
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "consumes": ["application/json"],
    "produces": ["application/json"],
    "paths": {
        "/articles": {
            "get": {
                "tags": ["Articles"],
                "summary": "Search articles",
                "description": "Conjunctive search. Every query term must match. With a query, results are ordered by text rank, then relevance, recency and id.",
                "operationId": "searchArticles",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string", "description": "Free text query, all terms required"},
                    {"name": "source", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "description": "Source names (repeatable or comma separated)"},
                    {"name": "topic", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "description": "Topic names, any of"},
                    {"name": "min_relevance", "in": "query", "type": "number", "minimum": 0, "maximum": 100},
                    {"name": "start_date", "in": "query", "type": "string", "description": "RFC3339 or YYYY-MM-DD"},
                    {"name": "end_date", "in": "query", "type": "string", "description": "RFC3339 or YYYY-MM-DD (whole day)"},
                    {"name": "limit", "in": "query", "type": "integer", "default": 50, "maximum": 500},
                    {"name": "offset", "in": "query", "type": "integer", "default": 0}
                ],
                "responses": {
                    "200": {"description": "Matching articles", "schema": {"$ref": "#/definitions/SearchResponse"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/Error"}},
                    "503": {"description": "Storage unavailable or query timed out", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "post": {
                "tags": ["Articles"],
                "summary": "Ingest one article",
                "description": "Analyzes, deduplicates and stores the article.",
                "operationId": "ingestArticle",
                "parameters": [
                    {"name": "article", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ArticleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Inserted", "schema": {"$ref": "#/definitions/IngestResult"}},
                    "200": {"description": "Updated, skipped, duplicate or rejected", "schema": {"$ref": "#/definitions/IngestResult"}},
                    "400": {"description": "Missing url or title", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/articles/batch": {
            "post": {
                "tags": ["Articles"],
                "summary": "Ingest many articles",
                "operationId": "ingestBatch",
                "parameters": [
                    {"name": "batch", "in": "body", "required": true, "schema": {
                        "type": "object",
                        "properties": {"articles": {"type": "array", "items": {"$ref": "#/definitions/ArticleRequest"}}}
                    }}
                ],
                "responses": {
                    "200": {"description": "Per-item outcomes"},
                    "400": {"description": "Malformed batch", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/articles/top": {
            "get": {
                "tags": ["Articles"],
                "summary": "Most relevant recent articles",
                "operationId": "topArticles",
                "parameters": [
                    {"name": "hours", "in": "query", "type": "integer", "default": 24},
                    {"name": "limit", "in": "query", "type": "integer", "default": 10}
                ],
                "responses": {"200": {"description": "Articles by relevance"}}
            }
        },
        "/articles/quality": {
            "get": {
                "tags": ["Articles"],
                "summary": "Recent articles by composite quality",
                "description": "quality = 0.6 x relevance/100 + 0.3 x exp(-age/24h) + 0.1 x source reputation, with configurable weights.",
                "operationId": "qualityArticles",
                "parameters": [
                    {"name": "hours", "in": "query", "type": "integer", "default": 24},
                    {"name": "limit", "in": "query", "type": "integer", "default": 10}
                ],
                "responses": {"200": {"description": "Articles by quality"}}
            }
        },
        "/articles/similar": {
            "get": {
                "tags": ["Articles"],
                "summary": "Articles with a similar title",
                "operationId": "similarArticles",
                "parameters": [
                    {"name": "title", "in": "query", "type": "string", "required": true},
                    {"name": "limit", "in": "query", "type": "integer", "default": 10}
                ],
                "responses": {"200": {"description": "Articles by title similarity"}}
            }
        },
        "/topics": {
            "get": {
                "tags": ["Topics"],
                "summary": "List lexicon topics",
                "operationId": "getTopics",
                "responses": {"200": {"description": "Topic names in lexicon order"}}
            }
        },
        "/topics/trending": {
            "get": {
                "tags": ["Topics"],
                "summary": "Trending topics",
                "operationId": "trendingTopics",
                "parameters": [
                    {"name": "days", "in": "query", "type": "integer", "default": 7}
                ],
                "responses": {"200": {"description": "Topic counts, highest first"}}
            }
        },
        "/suggestions": {
            "get": {
                "tags": ["Topics"],
                "summary": "Search suggestions",
                "operationId": "suggestions",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "Up to 10 topic names and keywords"}}
            }
        },
        "/analyze": {
            "post": {
                "tags": ["Analysis"],
                "summary": "Analyze text without storing it",
                "operationId": "analyze",
                "parameters": [
                    {"name": "text", "in": "body", "required": true, "schema": {
                        "type": "object",
                        "properties": {"title": {"type": "string"}, "content": {"type": "string"}}
                    }}
                ],
                "responses": {"200": {"description": "Analysis", "schema": {"$ref": "#/definitions/Analysis"}}}
            }
        },
        "/stats": {
            "get": {
                "tags": ["Maintenance"],
                "summary": "Corpus statistics",
                "operationId": "stats",
                "responses": {"200": {"description": "Statistics"}}
            }
        },
        "/index/health": {
            "get": {
                "tags": ["Maintenance"],
                "summary": "Text index health",
                "operationId": "indexHealth",
                "responses": {"200": {"description": "Missing and orphaned index rows"}}
            }
        },
        "/index/rebuild": {
            "post": {
                "tags": ["Maintenance"],
                "summary": "Rebuild the text index",
                "operationId": "rebuildIndex",
                "responses": {
                    "200": {"description": "Rebuilt"},
                    "500": {"description": "Rebuild failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/storage/stats": {
            "get": {
                "tags": ["Maintenance"],
                "summary": "Database statistics",
                "operationId": "storageStats",
                "responses": {"200": {"description": "Statistics"}}
            }
        },
        "/storage/optimize": {
            "post": {
                "tags": ["Maintenance"],
                "summary": "Vacuum and analyze the database",
                "operationId": "optimizeStorage",
                "responses": {"200": {"description": "Optimized"}}
            }
        },
        "/poller/status": {
            "get": {
                "tags": ["Poller"],
                "summary": "Feed poller status",
                "operationId": "pollerStatus",
                "responses": {"200": {"description": "Status"}}
            }
        },
        "/poller/force-poll/{source}": {
            "post": {
                "tags": ["Poller"],
                "summary": "Poll one feed source now",
                "operationId": "forcePoll",
                "parameters": [
                    {"name": "source", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Polled"},
                    "404": {"description": "Unknown source", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/poller/last-polled": {
            "get": {
                "tags": ["Poller"],
                "summary": "Last poll time per source",
                "operationId": "lastPolled",
                "responses": {"200": {"description": "Map of source to time"}}
            }
        }
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "ArticleRequest": {
            "type": "object",
            "required": ["url", "title"],
            "properties": {
                "url": {"type": "string"},
                "title": {"type": "string"},
                "content": {"type": "string"},
                "author": {"type": "string"},
                "source": {"type": "string"},
                "published_at": {"type": "string", "format": "date-time"}
            }
        },
        "Article": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "url": {"type": "string"},
                "title": {"type": "string"},
                "content": {"type": "string"},
                "author": {"type": "string"},
                "source": {"type": "string"},
                "published_at": {"type": "string", "format": "date-time"},
                "fetched_at": {"type": "string", "format": "date-time"},
                "processed_at": {"type": "string", "format": "date-time"},
                "topics": {"type": "array", "items": {"type": "string"}},
                "keywords": {"type": "array", "items": {"type": "string"}},
                "relevance_score": {"type": "number"},
                "lexicon_version": {"type": "string"},
                "text_rank": {"type": "number"}
            }
        },
        "SearchResponse": {
            "type": "object",
            "properties": {
                "articles": {"type": "array", "items": {"$ref": "#/definitions/Article"}},
                "count": {"type": "integer"},
                "limit": {"type": "integer"},
                "offset": {"type": "integer"}
            }
        },
        "IngestResult": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "id": {"type": "integer"},
                "status": {"type": "string", "enum": ["inserted", "updated", "skipped", "duplicate", "rejected"]},
                "score": {"type": "number"},
                "topics": {"type": "array", "items": {"type": "string"}},
                "duplicate_of": {"type": "integer"},
                "similarity": {"type": "number"},
                "error": {"type": "string"}
            }
        },
        "Analysis": {
            "type": "object",
            "properties": {
                "score": {"type": "number"},
                "topics": {"type": "array", "items": {"type": "string"}},
                "keywords": {"type": "array", "items": {"type": "string"}},
                "is_related": {"type": "boolean"}
            }
        }
    },
    "tags": [
        {"name": "Articles", "description": "Search and ingestion"},
        {"name": "Topics", "description": "Lexicon topics and trends"},
        {"name": "Analysis", "description": "Relevance analysis"},
        {"name": "Maintenance", "description": "Statistics, index and database upkeep"},
        {"name": "Poller", "description": "Background feed poller"}
    ]
}`
