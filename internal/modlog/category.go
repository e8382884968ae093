package modlog

import "strings"

// Category identifies one loggable moderation action kind. The value is the
// bit position inside a guild's stored log mask, so the order here is part
// of the on-disk format and must not change.
type Category int

const (
	ClearMessages Category = iota
	ClearChannel
	Mute
	Unmute
	Kick
	Lock
	Unlock
	Ban
	Unban
	Warn
	RemoveWarn
	RemoveMultipleWarns

	categoryCount
)

var categoryNames = [categoryCount]string{
	ClearMessages:       "clear_messages",
	ClearChannel:        "clear_channel",
	Mute:                "mute",
	Unmute:              "unmute",
	Kick:                "kick",
	Lock:                "lock",
	Unlock:              "unlock",
	Ban:                 "ban",
	Unban:               "unban",
	Warn:                "warn",
	RemoveWarn:          "remove_warn",
	RemoveMultipleWarns: "remove_multiple_warns",
}

func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return "unknown"
	}
	return categoryNames[c]
}

func (c Category) bit() int {
	return 1 << c
}

// CategoryFromName resolves a category by its stable name.
func CategoryFromName(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range categoryNames {
		if n == name {
			return Category(i), true
		}
	}
	return 0, false
}

// AllCategories returns every category in bit order.
func AllCategories() []Category {
	all := make([]Category, categoryCount)
	for i := range all {
		all[i] = Category(i)
	}
	return all
}

// Mask is a guild's set of enabled log categories, stored as a plain
// integer with one bit per category.
type Mask int

func (m Mask) Has(c Category) bool {
	return int(m)&c.bit() != 0
}

func (m Mask) With(cats ...Category) Mask {
	for _, c := range cats {
		m |= Mask(c.bit())
	}
	return m
}

func (m Mask) Without(cats ...Category) Mask {
	for _, c := range cats {
		m &^= Mask(c.bit())
	}
	return m
}

// Categories lists the enabled categories in bit order.
func (m Mask) Categories() []Category {
	var cats []Category
	for i := Category(0); i < categoryCount; i++ {
		if m.Has(i) {
			cats = append(cats, i)
		}
	}
	return cats
}
