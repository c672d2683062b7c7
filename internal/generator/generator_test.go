package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContinuation_KeywordRouting(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "greeting", input: "Hello there", want: GreetingContinuation},
		{name: "greeting short form", input: "hi", want: GreetingContinuation},
		{name: "greeting is case insensitive", input: "HELLO", want: GreetingContinuation},
		{name: "help", input: "help me", want: HelpContinuation},
		{name: "coding", input: "review my code", want: CodingContinuation},
		{name: "programming", input: "I like Programming", want: CodingContinuation},
		{name: "write", input: "can you write a poem", want: WritingContinuation},
		{name: "writing", input: "WRITING tips", want: WritingContinuation},
		{name: "fallback", input: "random musings", want: GenericContinuation},
		{name: "empty", input: "", want: GenericContinuation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Continuation(tt.input))
		})
	}
}

func TestClassify_Precedence(t *testing.T) {
	// Greeting wins over help, help over coding, coding over writing.
	assert.Equal(t, TopicGreeting, Classify("hello, help me"))
	assert.Equal(t, TopicHelp, Classify("help with code"))
	assert.Equal(t, TopicCoding, Classify("write code"))
	assert.Equal(t, TopicWriting, Classify("rewrite the essay"))
}

func TestClassify_SubstringMatch(t *testing.T) {
	// "this" contains "hi"; matching is plain substring, not word based.
	assert.Equal(t, TopicGreeting, Classify("what is this"))
	assert.Equal(t, TopicGeneric, Classify("random musings"))
}

func TestLeadIn(t *testing.T) {
	assert.Len(t, LeadIns, 8)
	assert.Equal(t, LeadIns[0], LeadIn(0))
	assert.Equal(t, LeadIns[7], LeadIn(7))
	assert.Equal(t, LeadIns[0], LeadIn(8))
	assert.Equal(t, LeadIns[7], LeadIn(-1))
}

func TestReply(t *testing.T) {
	reply := Reply("Hello there", 2)

	assert.True(t, strings.HasPrefix(reply, LeadIns[2]+" "))
	assert.True(t, strings.HasSuffix(reply, GreetingContinuation))
	assert.Equal(t, LeadIns[2]+" "+GreetingContinuation, reply)
}
