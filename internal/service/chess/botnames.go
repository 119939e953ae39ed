package chess

import "math/rand/v2"

var defaultBotNames = []string{
	"Sainath Patlolla",
	"Divya",
	"Shivananda",
	"Balakrishna",
	"Marcel",
	"BishopBrain",
	"PawnStar",
	"Trivikram",
	"Shivram",
	"StrategistAI",
	"TacticalBot",
	"Ninja",
	"MoveGenius",
	"NoobChess",
	"Sanjay Ramaswamy",
}

func pickBotName(names []string) string {
	if len(names) == 0 {
		names = defaultBotNames
	}
	return names[rand.IntN(len(names))]
}
