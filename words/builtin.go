package words

// builtinCorpus is used when no words file is configured.
var builtinCorpus = map[string][]string{
	"Tech": {
		"hacker", "robot", "hologram", "satellite", "keyboard",
		"monitor", "drone", "antenna", "firewall", "joystick",
	},
	"Animals": {
		"dolphin", "octopus", "falcon", "tiger", "spider",
		"wolf", "beetle", "cobra", "panther", "penguin",
	},
	"Places": {
		"subway", "rooftop", "harbor", "stadium", "warehouse",
		"temple", "bridge", "tunnel", "pyramid", "casino",
	},
	"Objects": {
		"mirror", "compass", "lantern", "umbrella", "hammer",
		"anchor", "hourglass", "helmet", "whistle", "shield",
	},
	"Food": {
		"coffee", "sushi", "burger", "pizza", "chocolate",
		"honey", "wasabi", "cinnamon", "vanilla", "pancake",
	},
	"Nature": {
		"volcano", "glacier", "tornado", "eclipse", "aurora",
		"meteor", "thunder", "avalanche", "tsunami", "lightning",
	},
}
