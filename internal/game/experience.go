package game

import "math"

// MaxLevel is the highest level a commander can reach.
const MaxLevel = 20

// levelTable holds the cumulative XP required to reach each level.
// Index 0 = level 1 (0 XP), index 1 = level 2 (50 XP), etc.
var levelTable = [MaxLevel]int64{
	0,     // Level 1
	50,    // Level 2
	150,   // Level 3
	300,   // Level 4
	500,   // Level 5
	750,   // Level 6
	1050,  // Level 7
	1400,  // Level 8
	1800,  // Level 9
	2250,  // Level 10
	2750,  // Level 11
	3300,  // Level 12
	3900,  // Level 13
	4550,  // Level 14
	5250,  // Level 15
	6000,  // Level 16
	6800,  // Level 17
	7650,  // Level 18
	8550,  // Level 19
	9500,  // Level 20
}

// ExpForLevel returns the cumulative XP required to reach the given level.
func ExpForLevel(level int) int64 {
	if level < 1 {
		return 0
	}
	if level > MaxLevel {
		return levelTable[MaxLevel-1]
	}
	return levelTable[level-1]
}

// ExpToNextLevel returns the remaining XP needed to reach the next level.
func ExpToNextLevel(level int, experience int64) int64 {
	if level >= MaxLevel {
		return 0
	}
	remaining := ExpForLevel(level+1) - experience
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LevelForExp returns the level reached with the given cumulative XP.
func LevelForExp(experience int64) int {
	level := 1
	for level < MaxLevel && experience >= levelTable[level] {
		level++
	}
	return level
}

// BuildExp is the XP awarded for completing a build of the given iron cost.
func BuildExp(cost float64) int64 {
	if cost <= 0 {
		return 0
	}
	return int64(math.Floor(cost / 100))
}
