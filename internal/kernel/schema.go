package kernel

// The JSON Schemas below bind the structured-output contracts of spec
// §6 to internal/agentshim's jsonschema/v6 validation. They are kept
// next to the Go types they validate so the two never drift apart.

// PlannerOutputSchema validates PlannerOutput.
const PlannerOutputSchema = `{
  "type": "object",
  "required": ["intent", "decision"],
  "properties": {
    "intent": {"type": "string"},
    "decision": {
      "type": "object",
      "required": ["decision"],
      "properties": {
        "decision": {"type": "string", "enum": ["CONTINUE", "DONE", "STUCK"]},
        "reason": {"type": "string"},
        "blocker": {"type": "string"}
      },
      "allOf": [
        {
          "if": {"properties": {"decision": {"const": "DONE"}}},
          "then": {"required": ["reason"], "properties": {"reason": {"type": "string", "minLength": 1}}}
        },
        {
          "if": {"properties": {"decision": {"const": "STUCK"}}},
          "then": {"required": ["reason"], "properties": {"reason": {"type": "string", "minLength": 1}}}
        }
      ]
    },
    "iteration_plan": {
      "type": ["object", "null"],
      "properties": {
        "executor_count": {"type": "integer"},
        "work_items": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["work_item_id", "description", "executor_number"],
            "properties": {
              "work_item_id": {"type": "string"},
              "description": {"type": "string"},
              "executor_number": {"type": "integer"}
            }
          }
        }
      }
    },
    "messages": {"type": "array", "items": {"type": "string"}}
  }
}`

// ExecutorOutputSchema validates ExecutorOutput.
const ExecutorOutputSchema = `{
  "type": "object",
  "required": ["status", "what_was_done", "work_committed", "traces_updated"],
  "properties": {
    "status": {"type": "string", "enum": ["Completed", "Blocked"]},
    "what_was_done": {"type": "string"},
    "blockers": {"type": "string"},
    "notes": {"type": "string"},
    "efficiency_notes": {"type": "string"},
    "work_committed": {"type": "boolean"},
    "traces_updated": {"type": "boolean"}
  }
}`

// VerifierOutputSchema validates VerifierOutput.
const VerifierOutputSchema = `{
  "type": "object",
  "required": ["outcome", "summary"],
  "properties": {
    "outcome": {"type": "string", "enum": ["DONE", "CONTINUE", "UNCERTAIN"]},
    "summary": {"type": "string"}
  }
}`

// SpecialistOutputSchema validates SpecialistOutput.
const SpecialistOutputSchema = `{
  "type": "object",
  "required": ["feedback"],
  "properties": {
    "feedback": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "description"],
        "properties": {
          "title": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`
