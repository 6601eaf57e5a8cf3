package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/aura/internal/booking"
	"github.com/kalambet/aura/internal/engine"
	"github.com/kalambet/aura/internal/sigil"
)

const noDomain = "none"

var domainUse = map[booking.Domain]string{
	booking.DomainFood:               "the user wants food delivered",
	booking.DomainTicket:             "the user wants tickets for a concert, show or event",
	booking.DomainFasterbookFood:     "the user wants to order a dish through FasterBook",
	booking.DomainFasterbookMovie:    "the user wants movie tickets through FasterBook",
	booking.DomainFasterbookBookings: "the user asks to see their existing bookings or orders",
	booking.DomainFasterbookMenu:     "the user asks to see a restaurant's menu",
	booking.DomainRestaurant:         "the user wants to reserve a table at a restaurant",
	booking.DomainHotel:              "the user wants to book a hotel room",
	booking.DomainFlight:             "the user wants to book a flight",
	booking.DomainRide:               "the user wants a taxi or ride",
}

const personaTemplate = `You are %s, a Universal Reasoning Agent. You help the user think through complex problems, manage tasks, and understand the world around them. Answer clearly and concisely.

Special replies. When one of the cases below applies, reply with ONLY the marker, no other text:
- The user asks you to create, draw or generate an image: reply "%s <detailed image prompt>".
%s
Otherwise reply normally.`

// systemPrompt is the persona and marker rules for the main completion.
func systemPrompt(name string) string {
	var rules strings.Builder
	for _, d := range booking.Domains {
		marker, ok := sigil.For(d)
		if !ok {
			continue
		}
		fmt.Fprintf(&rules, "- If %s: reply %q.\n", domainUse[d], marker)
	}
	return fmt.Sprintf(personaTemplate, name, sigil.ImagePrefix, strings.TrimRight(rules.String(), "\n"))
}

const actionPrompt = `You turn a booking request into a structured action. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Pick the domain that matches the request, or "none" when the request is not a booking. Fill only the parameters the user actually mentioned; leave the others out.`

func actionSchema() *engine.Schema {
	domains := make([]string, 0, len(booking.Domains)+1)
	for _, d := range booking.Domains {
		domains = append(domains, string(d))
	}
	domains = append(domains, noDomain)

	keys := make([]string, 0, len(booking.ParamDescriptions))
	for k := range booking.ParamDescriptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make(map[string]engine.SchemaProperty, len(keys))
	for _, k := range keys {
		params[k] = engine.SchemaProperty{Type: "string", Description: booking.ParamDescriptions[k]}
	}

	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"domain":     {Type: "string", Description: "Booking domain", Enum: domains},
			"parameters": {Type: "object", Description: "Details of the booking", Properties: params},
		},
		Required: []string{"domain", "parameters"},
	}
}

const tasksPrompt = `You derive follow-up tasks from a user's message. Your output must be ONLY a single valid JSON object that conforms to the provided schema.

Rules:
- Suggest at most %d short, actionable task titles (under 60 characters each).
- Only suggest tasks the user would plausibly want to track; return an empty list for greetings, small talk and simple questions.`

func tasksSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"tasks": {Type: "array", Description: "Suggested task titles", Items: &engine.SchemaProperty{Type: "string"}},
		},
		Required: []string{"tasks"},
	}
}
