package script

import (
	"fmt"
	"unicode/utf8"
)

const systemPromptFormat = `You are an expert educational podcast scriptwriter. Your task is to convert educational content into an engaging, natural conversation between a TEACHER (experienced, knowledgeable, patient) and a STUDENT (curious, asking good questions, seeking clarification).

Guidelines:
1. Make the conversation NATURAL and ENGAGING - like a real tutoring session
2. The teacher should explain concepts clearly using analogies and examples
3. The student should ask thoughtful questions and show genuine curiosity
4. Include moments of humor and relatability
5. Break down complex topics into digestible explanations
6. The conversation should flow naturally, not feel scripted
7. Include about 8-12 exchanges between teacher and student
8. Each response should be 1-3 sentences for natural speech rhythm
9. STRICTLY output the conversation in %s language.

Output your response as a valid JSON object with this exact structure:
{
    "title": "Podcast episode title",
    "summary": "Brief 2-3 sentence summary of what this episode covers",
    "conversation": [
        {"speaker": "teacher", "text": "dialogue here..."},
        {"speaker": "student", "text": "dialogue here..."},
        ...
    ]
}

IMPORTANT: Return ONLY the JSON object, no other text.`

const userPromptFormat = `Convert the following educational content into an engaging student-teacher podcast conversation in %s:

---
%s
---

Remember to make it natural, educational, and engaging. Output only valid JSON in %s.`

// SystemPrompt returns the instructions given to the model for the language name.
func SystemPrompt(languageName string) string {
	return fmt.Sprintf(systemPromptFormat, languageName)
}

// UserPrompt embeds the source text and repeats the target language.
func UserPrompt(languageName, text string) string {
	return fmt.Sprintf(userPromptFormat, languageName, text, languageName)
}

// Truncate returns at most limit characters of text without splitting a rune.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	count := 0
	for index := range text {
		if count == limit {
			return text[:index]
		}

		count++
	}

	return text
}
