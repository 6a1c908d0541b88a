package schemas

// ResearchBrief is the schema for the research agent's output.
const ResearchBrief = `{
  "type": "object",
  "required": ["keyword", "search_intent", "target_audience", "subtopics", "suggested_outline", "word_count_target"],
  "properties": {
    "keyword": {"type": "string", "minLength": 1},
    "search_intent": {"type": "string", "minLength": 1},
    "target_audience": {"type": "string"},
    "subtopics": {"type": "array", "items": {"type": "string"}},
    "competitor_angles": {"type": "array", "items": {"type": "string"}},
    "related_keywords": {"type": "array", "items": {"type": "string"}},
    "suggested_outline": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "word_count_target": {"type": "integer", "minimum": 1}
  }
}`

// ArticleDraft is the schema for the writer agent's output.
const ArticleDraft = `{
  "type": "object",
  "required": ["title", "slug", "meta_description", "body_html"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "slug": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"},
    "meta_description": {"type": "string"},
    "body_html": {"type": "string", "minLength": 1},
    "word_count": {"type": "integer", "minimum": 0},
    "revision_notes": {"type": "string"}
  }
}`

// SEOAnnotations is the schema for the model-generated portion of the SEO
// agent's output. Heading and keyword-density analysis is computed locally
// and merged in afterwards.
const SEOAnnotations = `{
  "type": "object",
  "required": ["meta_title", "meta_description", "optimization_score"],
  "properties": {
    "meta_title": {"type": "string", "minLength": 1, "maxLength": 70},
    "meta_description": {"type": "string", "maxLength": 200},
    "schema_markup": {"type": "string"},
    "optimization_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "recommendations": {"type": "array", "items": {"type": "string"}}
  }
}`

// QAReport is the schema for the QA agent's output.
const QAReport = `{
  "type": "object",
  "required": ["scores", "feedback"],
  "properties": {
    "passed": {"type": "boolean"},
    "overall_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "scores": {
      "type": "object",
      "required": ["readability", "seo", "accuracy", "engagement", "brand_voice"],
      "properties": {
        "readability": {"type": "integer", "minimum": 0, "maximum": 100},
        "seo": {"type": "integer", "minimum": 0, "maximum": 100},
        "accuracy": {"type": "integer", "minimum": 0, "maximum": 100},
        "engagement": {"type": "integer", "minimum": 0, "maximum": 100},
        "brand_voice": {"type": "integer", "minimum": 0, "maximum": 100}
      }
    },
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["category", "severity", "description"],
        "properties": {
          "category": {"type": "string"},
          "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
          "description": {"type": "string"},
          "suggestion": {"type": "string"}
        }
      }
    },
    "feedback": {"type": "string"}
  }
}`
