package activity

import (
	"strings"
	"time"
)

// Verbs emitted for settings lifecycle events.
const (
	VerbSaved    = "settings.saved"
	VerbReset    = "settings.reset"
	VerbUpgraded = "settings.upgraded"
	VerbPurged   = "settings.purged"
)

// ObjectType is the object type used by all settings events.
const ObjectType = "settings"

// SettingsEventInput describes the common fields for settings lifecycle events.
type SettingsEventInput struct {
	ActorID         string
	UserID          string
	TenantID        string
	ObjectID        string
	Channel         string
	Recipients      []string
	Metadata        map[string]any
	Version         string
	PreviousVersion string
	Properties      []string
	Skipped         []string
	PurgedVersions  []string
	OccurredAt      time.Time
}

// BuildSavedEvent describes properties written for a version.
func BuildSavedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSaved, input)
}

// BuildResetEvent describes a version being cleared.
func BuildResetEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbReset, input)
}

// BuildUpgradedEvent describes values migrated from PreviousVersion to Version.
func BuildUpgradedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbUpgraded, input)
}

// BuildPurgedEvent describes old versions being deleted.
func BuildPurgedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbPurged, input)
}

func buildSettingsEvent(verb string, input SettingsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.PreviousVersion != "" {
		metadata = ensureMetadata(metadata)
		metadata["previous_version"] = input.PreviousVersion
	}
	if len(input.Properties) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["properties"] = cloneStrings(input.Properties)
	}
	if len(input.Skipped) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["skipped"] = cloneStrings(input.Skipped)
	}
	if len(input.PurgedVersions) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["purged_versions"] = cloneStrings(input.PurgedVersions)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Version)
	}
	if objectID == "" {
		objectID = ObjectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Version:    strings.TrimSpace(input.Version),
		Recipients: cloneStrings(input.Recipients),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
