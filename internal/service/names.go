package service

import (
	"fmt"
	"strings"
)

const maxNameLength = 255

// gameNameWords are words the game's own name generator uses. A started
// game whose name contains none of them was probably mistyped.
var gameNameWords = []string{
	"War", "Spirit", "Faith", "Glory", "Blood", "Empires", "Songs", "Dawn", "Majestic", "Parade",
	"Prophecy", "Prophesy", "Gold", "Fire", "Swords", "Queens", "Knights", "Kings", "Tribes",
	"Tales", "Quests", "Change", "Games", "Throne", "Conquest", "Struggle", "Victory", "Battles",
	"Legends", "Heroes", "Storms", "Clouds", "Gods", "Love", "Lords", "Lights", "Wrath", "Destruction",
	"Whales", "Ruins", "Monuments", "Wonder", "Clowns", "Bongo", "Duh!", "Squeal", "Squirrel", "Confusion",
	"Gruff", "Moan", "Chickens", "Spunge", "Gnomes", "Bell boys", "Gurkins", "Commotion", "LOL", "Shenanigans",
	"Hullabaloo", "Papercuts", "Eggs", "Mooni", "Gaami", "Banjo", "Flowers", "Fiddlesticks", "Fish Sticks", "Hills",
	"Fields", "Lands", "Forest", "Ocean", "Fruit", "Mountain", "Lake", "Paradise", "Jungle", "Desert", "River",
	"Sea", "Shores", "Valley", "Garden", "Moon", "Star", "Winter", "Spring", "Summer", "Autumn", "Divide", "Square",
	"Custard", "Goon", "Cat", "Spagetti", "Fish", "Fame", "Popcorn", "Dessert", "Space", "Glacier", "Ice", "Frozen",
	"Superb", "Unknown", "Test", "Beasts", "Birds", "Bugs", "Food", "Aliens", "Plains", "Volcano", "Cliff",
	"Rapids", "Reef", "Plateau", "Basin", "Oasis", "Marsh", "Swamp", "Monsoon", "Atoll", "Fjord", "Tundra", "Map",
	"Strait", "Savanna", "Butte", "Bay", "Giants", "Warriors", "Archers", "Defenders", "Catapults", "Riders",
	"Sleds", "Explorers", "Priests", "Ships", "Dragons", "Crabs", "Rebellion",
}

// LooksLikeGameName reports whether name contains a generated-name word.
func LooksLikeGameName(name string) bool {
	upper := strings.ToUpper(name)
	for _, w := range gameNameWords {
		if strings.Contains(upper, strings.ToUpper(w)) {
			return true
		}
	}
	return false
}

// cleanName trims and validates a free-text name.
func cleanName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", ErrEmptyName
	}
	if len(name) > maxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// playerRef renders a player id for audit entries.
func playerRef(id int64) string {
	return fmt.Sprintf("[%d]", id)
}
