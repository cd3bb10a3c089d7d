package knowledge

import "fmt"

// DefaultSeed returns the starter question/answer set built from the
// business details, so a fresh install can answer the basics without a
// single escalation.
func DefaultSeed(hours, phone, address string) []SeedEntry {
	return []SeedEntry{
		{
			Question: "What are your hours?",
			Answer:   fmt.Sprintf("Our hours are %s", hours),
			Context:  "Business hours information",
		},
		{
			Question: "What services do you offer?",
			Answer:   "We offer haircuts, hair coloring, manicures, pedicures, facials, massage therapy, and waxing services.",
			Context:  "Service offerings",
		},
		{
			Question: "How much does a haircut cost?",
			Answer:   "Our haircuts range from $45 to $65 depending on the stylist and service.",
			Context:  "Pricing information",
		},
		{
			Question: "Do you take walk-ins?",
			Answer:   "Yes, we accept walk-ins based on availability. We recommend calling ahead to check availability.",
			Context:  "Appointment policy",
		},
		{
			Question: "What is your phone number?",
			Answer:   fmt.Sprintf("Our phone number is %s", phone),
			Context:  "Contact information",
		},
		{
			Question: "Where are you located?",
			Answer:   fmt.Sprintf("We are located at %s", address),
			Context:  "Location information",
		},
	}
}
