package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	TypesChanged    bool       // true if any interview type was added, removed, or reworded
	TypeChanges     []TypeDiff // per-type diffs
	VoiceChanged    bool
	NewVoice        string
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// TypeDiff describes what changed for a single interview type between two
// configs.
type TypeDiff struct {
	Name          string
	PromptChanged bool
	Added         bool
	Removed       bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Default voice
	if old.Interview.Voice != new.Interview.Voice {
		d.VoiceChanged = true
		d.NewVoice = new.Interview.Voice
	}

	// Build type lookup maps keyed by name.
	oldTypes := make(map[string]*InterviewTypeConfig, len(old.Interview.Types))
	for i := range old.Interview.Types {
		oldTypes[old.Interview.Types[i].Name] = &old.Interview.Types[i]
	}
	newTypes := make(map[string]*InterviewTypeConfig, len(new.Interview.Types))
	for i := range new.Interview.Types {
		newTypes[new.Interview.Types[i].Name] = &new.Interview.Types[i]
	}

	// Detect reworded and removed types.
	for name, oldType := range oldTypes {
		newType, exists := newTypes[name]
		if !exists {
			d.TypeChanges = append(d.TypeChanges, TypeDiff{
				Name:    name,
				Removed: true,
			})
			d.TypesChanged = true
			continue
		}
		if oldType.Prompt != newType.Prompt {
			d.TypeChanges = append(d.TypeChanges, TypeDiff{
				Name:          name,
				PromptChanged: true,
			})
			d.TypesChanged = true
		}
	}

	// Detect added types.
	for name := range newTypes {
		if _, exists := oldTypes[name]; !exists {
			d.TypeChanges = append(d.TypeChanges, TypeDiff{
				Name:  name,
				Added: true,
			})
			d.TypesChanged = true
		}
	}

	return d
}
