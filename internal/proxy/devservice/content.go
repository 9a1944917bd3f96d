package devservice

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// Content generation constants.
const (
	minParagraphs        = 2
	maxExtraPara         = 5 // 2-6 paragraphs total
	minSentences         = 2
	maxExtraSent         = 4 // 2-5 sentences total
	minWords             = 6
	maxExtraWords        = 10   // 6-15 words total
	plainTextProbability = 0.2  // 20% plain text, 80% HTML
	reWordProbability    = 0.75 // chance a sentence gets another re-word
)

// reWords all start with "re" followed by a letter. Every paragraph carries at
// least one so the rewrite is always visible.
var reWords = []string{
	"rebuild", "record", "recover", "reduce", "refresh", "release",
	"remember", "remote", "repeat", "report", "rescue", "resolve",
	"return", "review", "rewrite", "reason",
}

// generateContent creates random paragraphs that are either HTML (80%) or
// plain text (20%). Returns the content and whether it is plain text.
func generateContent(faker *gofakeit.Faker) (content string, isPlainText bool) {
	numParagraphs := minParagraphs + faker.IntN(maxExtraPara)
	paragraphs := make([]string, numParagraphs)
	for i := range numParagraphs {
		paragraphs[i] = generateParagraph(faker)
	}

	isPlainText = faker.Float64() < plainTextProbability
	if isPlainText {
		return strings.Join(paragraphs, "\n\n"), true
	}

	var builder strings.Builder
	for _, p := range paragraphs {
		builder.WriteString("<p>")
		builder.WriteString(p)
		builder.WriteString("</p>\n")
	}
	return builder.String(), false
}

func generateParagraph(faker *gofakeit.Faker) string {
	numSentences := minSentences + faker.IntN(maxExtraSent)
	sentences := make([]string, numSentences)
	for i := range numSentences {
		sentence := faker.Sentence(minWords + faker.IntN(maxExtraWords))
		if i == 0 || faker.Float64() < reWordProbability {
			sentence = withReWord(faker, sentence)
		}
		sentences[i] = sentence
	}
	return strings.Join(sentences, " ")
}

// withReWord inserts a re-word after the first word of sentence.
func withReWord(faker *gofakeit.Faker, sentence string) string {
	word := faker.RandomString(reWords)
	first, rest, found := strings.Cut(sentence, " ")
	if !found {
		return sentence + " " + word
	}
	return first + " " + word + " " + rest
}

func generateTitle(faker *gofakeit.Faker) string {
	patterns := []func(*gofakeit.Faker) string{
		func(f *gofakeit.Faker) string { return fmt.Sprintf("The %s %s", f.Adjective(), f.RandomString(reWords)) },
		func(f *gofakeit.Faker) string { return fmt.Sprintf("A %s of %s", f.RandomString(reWords), f.Noun()) },
		func(f *gofakeit.Faker) string {
			return fmt.Sprintf("%s and %s", titleCase(f.Noun()), f.RandomString(reWords))
		},
		func(f *gofakeit.Faker) string { return fmt.Sprintf("How to %s the %s", f.RandomString(reWords), f.Noun()) },
	}
	return patterns[faker.IntN(len(patterns))](faker)
}

func titleCase(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
