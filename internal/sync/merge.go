package sync

import (
	"time"

	"github.com/advisorhq/advisor-backend/internal/models"
)

// localWins reports whether the local copy should replace the remote one.
// Remote wins ties; only a strictly later local UpdatedAt overrides it.
func localWins(localUpdated, remoteUpdated time.Time) bool {
	return localUpdated.After(remoteUpdated)
}

// MergeDocuments applies last-write-wins over the union of local and remote
// documents. It returns the merged set plus the local versions that need to
// be uploaded (local-only records, and local records strictly newer than
// their remote counterpart).
func MergeDocuments(local map[string]models.Document, remote []models.Document) (map[string]models.Document, []models.Document) {
	merged := make(map[string]models.Document, len(local)+len(remote))
	remoteIDs := make(map[string]struct{}, len(remote))
	var toUpload []models.Document

	for _, r := range remote {
		remoteIDs[r.ID] = struct{}{}
		if l, ok := local[r.ID]; ok && localWins(l.UpdatedAt, r.UpdatedAt) {
			merged[r.ID] = l
			toUpload = append(toUpload, l)
			continue
		}
		merged[r.ID] = r
	}

	for id, l := range local {
		if _, ok := remoteIDs[id]; ok {
			continue
		}
		merged[id] = l
		toUpload = append(toUpload, l)
	}

	return merged, toUpload
}

// MergeConversations mirrors MergeDocuments for the conversation set.
func MergeConversations(local map[string]models.Conversation, remote []models.Conversation) (map[string]models.Conversation, []models.Conversation) {
	merged := make(map[string]models.Conversation, len(local)+len(remote))
	remoteIDs := make(map[string]struct{}, len(remote))
	var toUpload []models.Conversation

	for _, r := range remote {
		remoteIDs[r.ID] = struct{}{}
		if l, ok := local[r.ID]; ok && localWins(l.UpdatedAt, r.UpdatedAt) {
			merged[r.ID] = l
			toUpload = append(toUpload, l)
			continue
		}
		merged[r.ID] = r
	}

	for id, l := range local {
		if _, ok := remoteIDs[id]; ok {
			continue
		}
		merged[id] = l
		toUpload = append(toUpload, l)
	}

	return merged, toUpload
}

// MergeSettings resolves the single settings record. The second return value
// reports whether the local copy must be uploaded.
func MergeSettings(local, remote *models.Settings) (*models.Settings, bool) {
	switch {
	case local == nil:
		return remote, false
	case remote == nil:
		return local, true
	case localWins(local.UpdatedAt, remote.UpdatedAt):
		return local, true
	default:
		return remote, false
	}
}

// MissingMessages returns the local messages absent from the remote set,
// compared by ID only. Message content is never merged, only presence.
func MissingMessages(local, remote []models.Message) []models.Message {
	remoteIDs := make(map[string]struct{}, len(remote))
	for _, m := range remote {
		remoteIDs[m.ID] = struct{}{}
	}

	var missing []models.Message
	for _, m := range local {
		if _, ok := remoteIDs[m.ID]; !ok {
			missing = append(missing, m)
		}
	}
	return missing
}
