package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gareflow/gareflow/internal/gara"
)

// Conversation tail lengths sent with each prompt.
const (
	chatHistoryTail       = 16
	checklistHistoryTail  = 12
	questionsHistoryTail  = 10
	autoAnswerHistoryTail = 8
)

// MaxExtractionDocuments caps the document previews sent for initial
// extraction.
const MaxExtractionDocuments = 6

// Sampling temperatures. Classification-like tasks run cooler.
const (
	temperatureStructured = 0.1
	temperatureDraft      = 0.2
)

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func history(messages []gara.ChatMessage, n int) string {
	recent := gara.Recent(messages, n)
	if recent == nil {
		recent = []gara.ChatMessage{}
	}
	return prettyJSON(recent)
}

// stateContract describes the shape the generator must return for a full
// tender state. The default state is embedded as the minimum schema.
func stateContract(tenderID string) string {
	return fmt.Sprintf(`GOAL: maintain a detailed, sectioned JSON description of the tender.
CONSTRAINTS:
- Reply ONLY with valid JSON (no markdown, no extra text).
- ALWAYS keep the baseline sections of the schema; add further top-level sections when useful.
- Organize content as nested objects and arrays.
- Every value must keep its expected type: string, number, array or object.
- Prefer arrays of short strings or objects over long paragraphs.
- When a value is unknown use an empty string or an empty array.
- Never remove sections or fields already present; update and complete them.
- Set overview.last_updated to an ISO-8601 timestamp.
- Keep checklist.items populated with granular requirement rows.
MINIMUM SCHEMA:
%s`, prettyJSON(gara.DefaultState(tenderID)))
}

func buildChecklistPrompts(tenderID string, state gara.State, docs []gara.Document, conversation []gara.ChatMessage) (string, string) {
	system := strings.Join([]string{
		`Build the operative checklist of a public tender as JSON.`,
		`Required output format: {"items":[...]}`,
		`Include ALL and ONLY the tender requirements (no generic operative tasks).`,
		`Every item has exactly these fields:`,
		`- requisito`,
		`- fonte (document and page/paragraph when available)`,
		`- tipo (mandatory|evaluative|attachment|format)`,
		`- owner_proposta`,
		`- stato (not_covered|to_approve|approved)`,
		`- evidenza_proposta`,
		`Rules:`,
		`- Do not invent requirements absent from the documents or the JSON.`,
		`- Do not omit requirements listed in admission_requirements and evaluative_requirements.`,
		`- Exclude generic rows such as "verify document" or "internal task".`,
		`Use short operative sentences. No text outside the JSON.`,
	}, "\n")

	if docs == nil {
		docs = []gara.Document{}
	}
	user := fmt.Sprintf("Tender ID: %s\nCurrent JSON:\n%s\n\nDocuments:\n%s\n\nRecent conversation:\n%s",
		tenderID, prettyJSON(state), prettyJSON(docs), history(conversation, checklistHistoryTail))
	return system, user
}

func buildQuestionsPrompts(tenderID string, candidates []gara.IndexedItem, conversation []gara.ChatMessage) (string, string) {
	system := strings.Join([]string{
		`Generate guided questions that help complete a tender checklist.`,
		`Reply ONLY with valid JSON in this format:`,
		`{"questions":[{"id":"qa_1","item_index":0,"requirement":"...","question":"...","suggestion":"...","owner":"..."}]}`,
		`Rules: use only the items received. At most ONE question per item_index. At most 6 questions.`,
		`The question must be operative and targeted. The suggestion is a short draft of 2-3 sentences.`,
	}, "\n")

	rows := make([]map[string]any, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, map[string]any{
			"item_index":     c.Index,
			"requisito":      c.Item.Requirement,
			"fonte":          c.Item.Source,
			"tipo":           c.Item.Kind,
			"owner_proposta": c.Item.Owner,
			"stato":          c.Item.Status,
		})
	}
	user := fmt.Sprintf("Tender ID: %s\nUncovered checklist:\n%s\n\nRecent conversation:\n%s",
		tenderID, prettyJSON(rows), history(conversation, questionsHistoryTail))
	return system, user
}

func buildAutoAnswerPrompts(tenderID string, state gara.State, q gara.GuidedQuestion, profile any, conversation []gara.ChatMessage) (string, string) {
	system := strings.Join([]string{
		`You assist a tender office.`,
		`Write a DRAFT answer that covers one checklist requirement.`,
		`Rely first on the COMPANY INFORMATION received.`,
		`Reply ONLY with valid JSON:`,
		`{"answer":"...","data_sufficient":true,"gaps":["..."]}`,
	}, "\n")

	requirement := strings.TrimSpace(q.Requirement)
	if requirement == "" {
		requirement = "Requirement"
	}
	question := strings.TrimSpace(q.Question)
	if question == "" {
		question = "How to cover: " + requirement
	}
	if profile == nil {
		profile = map[string]any{}
	}
	user := fmt.Sprintf("Tender ID: %s\nItem index: %d\nRequirement: %s\nQuestion: %s\n\nCompany information:\n%s\n\nTender JSON:\n%s\n\nRecent conversation:\n%s",
		tenderID, q.ItemIndex, requirement, question, prettyJSON(profile), prettyJSON(state), history(conversation, autoAnswerHistoryTail))
	return system, user
}

func buildChatPrompts(tenderID, message string, state gara.State, conversation []gara.ChatMessage) (string, string) {
	system := strings.Join([]string{
		`Update the structured state of a tender as JSON.`,
		stateContract(tenderID),
		`Reply ONLY with valid JSON: {"assistant_reply":"...","output_json":{...updated state...}}`,
	}, "\n")
	user := fmt.Sprintf("Tender ID: %s\nHistory:\n%s\n\nUser message:\n%s\n\nCurrent JSON:\n%s",
		tenderID, history(conversation, chatHistoryTail), message, prettyJSON(state))
	return system, user
}

func buildExtractionPrompts(tenderID string, state gara.State, docs []gara.Document) (string, string) {
	system := strings.Join([]string{
		`You assist a tender office.`,
		`Extract the information from the documents and produce the first complete structured JSON.`,
		stateContract(tenderID),
		`Reply ONLY with valid JSON: {"assistant_reply":"...","output_json":{...}}`,
	}, "\n")

	listing := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		listing = append(listing, map[string]any{
			"name":      d.Name,
			"stored_as": d.StoredAs,
			"type":      d.Type,
			"size":      d.Size,
			"category":  d.Category,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tender ID: %s\n\nCurrent JSON:\n%s\n\nDocuments:\n%s\n", tenderID, prettyJSON(state), prettyJSON(listing))
	shown := 0
	for _, d := range docs {
		if shown >= MaxExtractionDocuments {
			break
		}
		if strings.TrimSpace(d.Preview) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", d.Name, d.Preview)
		shown++
	}
	b.WriteString("\nAnalyze the documents above.")
	return system, b.String()
}

func buildClassifyPrompts(tenderID string, docs []gara.Document) (string, string) {
	categories := make([]string, len(gara.DocumentCategories))
	for i, c := range gara.DocumentCategories {
		categories[i] = string(c)
	}
	system := fmt.Sprintf(`Classify the tender documents. Categories: %s. Reply ONLY with JSON: {"documents":[{"stored_as":"...","category":"...","confidence":0.0,"rationale":"..."}]}`,
		strings.Join(categories, ", "))
	user := fmt.Sprintf("Tender ID: %s\nDocuments:\n%s", tenderID, prettyJSON(docs))
	return system, user
}

func buildMatchPrompts(items []gara.ChecklistItem, evidence map[string]any) (string, string) {
	system := `You are an expert in public procurement. Match the tender requirements with the available company evidence.
For each requirement decide:
- match_status: "covered" (clear evidence), "partial" (partial evidence), "not_covered" (no evidence)
- confidence: 0.0-1.0
- evidence_source: document or section that provides the evidence
- evidence_text: the specific company statement that covers the requirement
- gap_note: what is missing when partial or not covered

Reply ONLY with JSON: {"matches":[{"item_index":0,"match_status":"covered","confidence":0.9,"evidence_source":"...","evidence_text":"...","gap_note":""}]}`

	rows := make([]map[string]any, len(items))
	for i, item := range items {
		rows[i] = map[string]any{
			"item_index": i,
			"requisito":  item.Requirement,
			"tipo":       item.Kind,
			"fonte":      item.Source,
		}
	}
	user := fmt.Sprintf("TENDER REQUIREMENTS (to match):\n%s\n\nAVAILABLE COMPANY EVIDENCE:\n%s",
		prettyJSON(rows), prettyJSON(evidence))
	return system, user
}

func buildRenderPrompts(tenderID string, state gara.State) (string, string) {
	system := strings.Join([]string{
		`Interpret the JSON of a tender and produce ONLY a UI model JSON used to render its fields.`,
		`Reply ONLY with valid JSON: {"sections":[{"title":"string","items":[{"label":"string","value":"string|array|object","source_path":["path","to","field"]}],"notes":[]}]}`,
	}, "\n")
	user := fmt.Sprintf("Tender ID: %s\nJSON:\n%s", tenderID, prettyJSON(state))
	return system, user
}

func buildAnalyzePrompts(req AnalyzeRequest) (string, string) {
	system := `You assist with tender analysis. Answer concisely and operatively.`
	user := fmt.Sprintf("Section: %s\nElement: %s\nValue: %s\n\nRequest:\n%s",
		req.Section, req.Element, req.Value, req.Prompt)
	return system, user
}
