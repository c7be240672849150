package ranking

import "fmt"

// SelectCount is the number of memes the model is asked to return.
const SelectCount = 5

const promptTemplate = `Analyze %d memes for the query: '%s'

IMPORTANT RESPONSE INSTRUCTIONS:
- Respond EXACTLY in this JSON format:
[
  {"image_path": "filename.jpg", "score": 8, "summary": "Meme description"},
  ...
]
- Select ONLY the top %d most relevant memes
- Each image above is labeled with its filename - USE THE EXACT FILENAME shown
- Scores must be integers from 0-10
- Summaries must be one concise line
- The response should be only JSON. Nothing else.`

// BuildPrompt renders the instruction block sent ahead of the images.
func BuildPrompt(countHint int, query string) string {
	return fmt.Sprintf(promptTemplate, countHint, query, SelectCount)
}

// ImageLabel is the text part placed before each candidate image.
func ImageLabel(filename string) string {
	return "\nImage filename: " + filename
}
