package gateway

import (
	"fmt"
	"strings"
)

// DebugPromptTemplate is the instruction sent for AnalyzeCode.
// The format string expects 3 parameters: language, language tag, code.
const DebugPromptTemplate = "You are an expert code debugger. Analyze this %[1]s code and provide debugging feedback.\n" +
	"\n" +
	"Code to analyze:\n" +
	"```%[2]s\n" +
	"%[3]s\n" +
	"```\n" +
	"\n" +
	"Provide your response in this exact JSON format, with no additional text or markdown:\n" +
	"{\n" +
	"  \"issues\": [\"List each specific issue found\"],\n" +
	"  \"explanation\": \"A detailed technical explanation of all issues and how to fix them\",\n" +
	"  \"correctedCode\": \"The complete fixed code that resolves all issues\"\n" +
	"}\n" +
	"\n" +
	"Requirements:\n" +
	"1. Return valid JSON only. Do not wrap the response in a markdown code block\n" +
	"2. List all syntax errors, logical errors, and best practice violations\n" +
	"3. Provide complete corrected code that fixes all issues\n" +
	"4. Use proper code formatting in the correctedCode field\n" +
	"5. Escape quotes and newlines inside string values exactly as JSON requires\n" +
	"6. Keep the same language (%[1]s) as the input code\n"

// TranslationPromptTemplate is the instruction sent for TranslateCode.
// The format string expects 5 parameters: source language, target language,
// source language tag, code, target language.
const TranslationPromptTemplate = "As an expert programmer, translate this code from %[1]s to %[2]s.\n" +
	"\n" +
	"Original code (%[1]s):\n" +
	"```%[3]s\n" +
	"%[4]s\n" +
	"```\n" +
	"\n" +
	"Provide your response in this exact JSON format, with no additional text or markdown:\n" +
	"{\n" +
	"  \"translatedCode\": \"The complete translated code\",\n" +
	"  \"explanation\": \"Explanation of the key differences and changes made during translation\"\n" +
	"}\n" +
	"\n" +
	"Requirements:\n" +
	"1. Maintain the same functionality and logic\n" +
	"2. Use idiomatic patterns for %[5]s\n" +
	"3. Include any necessary imports or setup code\n" +
	"4. Explain any significant changes or language-specific adaptations\n" +
	"5. Return valid JSON only. Escape every double quote inside a value as \\\" and every line break as \\n\n" +
	"6. Do not use backtick code fences or unescaped control characters inside the JSON values\n"

// ExplanationPromptTemplate is the instruction sent for ExplainCode.
// The format string expects 3 parameters: language, language tag, code.
const ExplanationPromptTemplate = "As an expert programmer, provide a detailed explanation of this %[1]s code.\n" +
	"\n" +
	"Code to explain:\n" +
	"```%[2]s\n" +
	"%[3]s\n" +
	"```\n" +
	"\n" +
	"Provide your response in this exact JSON format, with no additional text or markdown:\n" +
	"{\n" +
	"  \"overview\": \"Brief overview of what the code does\",\n" +
	"  \"detailedExplanation\": \"Line-by-line or section-by-section explanation in plain text, with no markdown or formatting\",\n" +
	"  \"keyComponents\": [\"List of important functions, variables, or concepts used\"]\n" +
	"}\n" +
	"\n" +
	"Requirements:\n" +
	"1. Explain the purpose and functionality\n" +
	"2. Break down complex logic\n" +
	"3. Highlight important programming concepts used\n" +
	"4. Include best practices and potential improvements\n" +
	"5. Use plain text formatting\n" +
	"6. Return valid JSON only. Escape quotes and newlines inside string values exactly as JSON requires\n"

// DefaultChatPersona is the system instruction used when the caller supplies none.
const DefaultChatPersona = "You are CodeGenius, an AI programming assistant. You're helpful, friendly, and knowledgeable about coding, " +
	"software development, and technology. Provide accurate, concise answers with code examples when relevant. " +
	"Be supportive and encouraging, and avoid giving incorrect or misleading information."

// BuildDebugPrompt renders the debug instruction. Code is embedded verbatim.
func BuildDebugPrompt(code, language string) string {
	return fmt.Sprintf(DebugPromptTemplate, language, fenceTag(language), code)
}

// BuildTranslationPrompt renders the translation instruction. Code is embedded verbatim.
func BuildTranslationPrompt(code, fromLanguage, toLanguage string) string {
	return fmt.Sprintf(TranslationPromptTemplate, fromLanguage, toLanguage, fenceTag(fromLanguage), code, toLanguage)
}

// BuildExplanationPrompt renders the explanation instruction. Code is embedded verbatim.
func BuildExplanationPrompt(code, language string) string {
	return fmt.Sprintf(ExplanationPromptTemplate, language, fenceTag(language), code)
}

// BuildChatSystemInstruction returns customPrompt unchanged when it is not
// blank, and DefaultChatPersona otherwise.
func BuildChatSystemInstruction(customPrompt string) string {
	if strings.TrimSpace(customPrompt) != "" {
		return customPrompt
	}
	return DefaultChatPersona
}

// fenceTag turns a language name into a single-token fence tag.
func fenceTag(language string) string {
	return strings.ToLower(strings.Join(strings.Fields(language), "-"))
}
