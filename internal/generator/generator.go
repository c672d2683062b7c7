// Package generator produces synthetic assistant replies.
//
// Replies are a lead-in phrase followed by a continuation chosen from the
// user's text. Nothing here holds state or touches the clock, so every
// function can be tested in isolation.
package generator

import (
	"strings"
)

// LeadIns is the catalog of opening phrases a reply starts with.
var LeadIns = []string{
	"That's a great question! Let me think about that for a moment...",
	"I understand what you're asking. Here's my perspective on that:",
	"Interesting point! I'd be happy to help you with that.",
	"Based on what you've shared, here's what I think:",
	"That's a complex topic. Let me break it down for you:",
	"I appreciate you asking about that. Here's my analysis:",
	"Great observation! Let me elaborate on that:",
	"That's definitely worth exploring. Here's my take:",
}

// Continuations keyed by the topic detected in the user's text.
const (
	GreetingContinuation = "Hello there! It's great to meet you. What would you like to chat about today?"
	HelpContinuation     = "I'm here to assist you with a wide range of topics including coding, writing, analysis, creative tasks, and general questions. What specific area would you like help with?"
	CodingContinuation   = "I'd be happy to help with coding! I can assist with multiple programming languages, debugging, code reviews, and explaining concepts. What programming challenge are you working on?"
	WritingContinuation  = "I can definitely help with writing tasks! Whether it's creative writing, technical documentation, emails, or any other form of writing, I'm here to assist. What kind of writing project are you working on?"
	GenericContinuation  = "I find that topic quite fascinating! There are many angles we could explore. Would you like me to dive deeper into any specific aspect, or do you have follow-up questions?"
)

// Topic is the category a user's text was routed to.
type Topic string

const (
	TopicGreeting Topic = "greeting"
	TopicHelp     Topic = "help"
	TopicCoding   Topic = "coding"
	TopicWriting  Topic = "writing"
	TopicGeneric  Topic = "generic"
)

type rule struct {
	topic    Topic
	keywords []string
	text     string
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{TopicGreeting, []string{"hello", "hi"}, GreetingContinuation},
	{TopicHelp, []string{"help"}, HelpContinuation},
	{TopicCoding, []string{"code", "programming"}, CodingContinuation},
	{TopicWriting, []string{"write", "writing"}, WritingContinuation},
}

// Classify returns the topic for userText using case-insensitive substring
// matching.
func Classify(userText string) Topic {
	lower := strings.ToLower(userText)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.topic
			}
		}
	}
	return TopicGeneric
}

// Continuation maps userText to the contextual part of the reply.
func Continuation(userText string) string {
	topic := Classify(userText)
	for _, r := range rules {
		if r.topic == topic {
			return r.text
		}
	}
	return GenericContinuation
}

// LeadIn returns the catalog phrase at index i, wrapping out-of-range values.
func LeadIn(i int) string {
	n := len(LeadIns)
	i %= n
	if i < 0 {
		i += n
	}
	return LeadIns[i]
}

// Reply joins the lead-in at index pick with the continuation for userText.
func Reply(userText string, pick int) string {
	return LeadIn(pick) + " " + Continuation(userText)
}
