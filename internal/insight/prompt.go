package insight

import "fmt"

// BuildPrompt returns the single text prompt sent upstream for topic.
func BuildPrompt(topic string) string {
	return fmt.Sprintf(`You are a vocational guidance analyst. Research the current labor market for
the career or subject %q and report what a student choosing this path should know.

Respond with ONE JSON object and nothing else, shaped exactly like this:
{
  "insights": [
    {
      "id": 1,
      "title": "",
      "description": "",
      "category": "market_trend | job_opportunity | skill_formation | economic_info | work_modality | education_context",
      "relevance": "high | medium | low",
      "date": "",
      "source_name": "",
      "source_link": "",
      "impact": "",
      "recency_note": "",
      "local_employers": [""],
      "local_context": "",
      "specific_data": {
        "salary_ranges": {
          "entry": {"local_currency": "", "usd": ""},
          "mid": {"local_currency": "", "usd": ""},
          "senior": {"local_currency": "", "usd": ""}
        },
        "demanded_skills": [""],
        "valued_certifications": [""],
        "trending_tools": [""]
      },
      "student_recommendation": ""
    }
  ],
  "summary": {
    "general_trend": "",
    "main_opportunity": "",
    "main_challenges": [""],
    "general_recommendation": "",
    "outlook_next_period": ""
  }
}

Produce 10 insights. The summary must agree with the insights.`, topic)
}
