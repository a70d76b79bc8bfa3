package verification

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/zhenghchen/calhacks2025/src/types"
)

var instructions = template.Must(template.New("verification").Parse(`You are a verification agent for a VC firm's due diligence process.

FOUNDER CLAIMS (extracted from transcript):
{{.Claims}}

YOUR TASK:
1. Use the web_search tool to verify the founder's claims
2. Search for information about their name, company, school, and credentials
3. Analyze the search results to determine if claims are accurate
4. Return a verification verdict

CRITICAL GUIDELINES:
- Search for: "{{.Query}}"
- Look for consistency across multiple sources
- **FAIL immediately if ANY claim contradicts what you find**
- **FAIL if you cannot verify a major claim (school, company, credentials)**
- High confidence = 3+ sources confirm ALL claims
- Low confidence = 1-2 sources OR any unverified claims
- PASS ONLY if ALL major claims are verified with medium+ confidence
- If someone claims to be "John Smith from Stanford" but sources show "John Smith from MIT", that's a FAIL

FRAUD DETECTION:
- Be suspicious of unverified claims
- Timeline inconsistencies are RED FLAGS
- If claimed school doesn't match found school → FAIL
- If claimed company doesn't match found company → FAIL
- Missing verification of major claims → FAIL

Return ONLY a JSON object with:
{
  "verified": boolean,
  "confidence": "very_high" | "high" | "medium" | "low" | "very_low",
  "reasoning": "Detailed explanation of what you found and why",
  "sources_found": number,
  "details": "Summary of key findings from search results",
  "verdict": "PASS" | "FAIL"
}`))

// SuggestedQuery joins the claim's name, company and school.
func SuggestedQuery(claim types.FounderClaim) string {
	return strings.Join(strings.Fields(strings.Join([]string{claim.FounderName, claim.Company, claim.School}, " ")), " ")
}

func renderInstructions(claim types.FounderClaim) (string, error) {
	claims, err := json.MarshalIndent(claim, "", "  ")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = instructions.Execute(&buf, struct {
		Claims string
		Query  string
	}{string(claims), SuggestedQuery(claim)})
	return buf.String(), err
}
