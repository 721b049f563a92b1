package main

import "github.com/Zachkp/folio/internal/site"

var profile = site.Profile{
	Name:    "Zach Kordas-Potter",
	Tagline: "Software developer. Go, HTMX and anything that runs in a terminal.",
	AboutMe: `I love building software that is both useful and fun, and I am always curious about how things work behind the scenes.
	Most of my projects start with a simple idea and turn into a chance to learn something new, whether it is exploring a
	different language, experimenting with tools, or solving tricky problems.
	When I am not coding, you will usually find me training Muay Thai, shooting pool with friends,
	or chasing down a new challenge outside the screen.`,
}
