package file

// pipelineSchema is the JSON Schema every persisted pipeline document must
// satisfy before the engine trusts its metadata.
const pipelineSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "created_at": {"type": "string"},
    "updated_at": {"type": "string"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "code": {"type": "string"},
          "kind": {"enum": ["dataframe", "figure", "callable", "object", ""]},
          "depends_on": {
            "type": "array",
            "items": {"type": "string"}
          },
          "explicit_deps": {
            "type": "array",
            "items": {"type": "string"}
          },
          "state": {"enum": ["not_executed", "pending_validation", "validated", ""]},
          "result": {
            "type": "object",
            "required": ["format", "path"],
            "properties": {
              "format": {"type": "string"},
              "path": {"type": "string"}
            }
          },
          "last_error": {"type": "string"},
          "last_run_at": {"type": "string"}
        }
      }
    }
  }
}`
