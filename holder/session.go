package holder

import (
	"Palette/storage"
	"log"
)

// Turn is an alias for storage.Turn for backward compatibility
type Turn = storage.Turn

// Thread is an alias for storage.Thread for backward compatibility
type Thread = storage.Thread

type SessionManager struct {
	storage storage.SessionStorage
}

func NewSessionManager(store storage.SessionStorage) *SessionManager {
	return &SessionManager{
		storage: store,
	}
}

func (sm *SessionManager) Thread(key string) *storage.Thread {
	thread, err := sm.storage.GetThread(key)
	if err != nil {
		log.Printf("error getting thread %s: %v", key, err)
		return nil
	}
	return thread
}

func (sm *SessionManager) Record(key string) *storage.GenerationRecord {
	record, err := sm.storage.GetRecord(key)
	if err != nil {
		log.Printf("error getting generation record %s: %v", key, err)
		return nil
	}
	return record
}

// RecordExchange appends a user/model turn pair under the anchor key and
// mirrors the resulting thread under every other key, so a later reply to
// either the triggering message or the bot reply resumes the same thread.
func (sm *SessionManager) RecordExchange(anchorKey string, mirrorKeys []string, userText, modelText string) {
	thread, err := sm.storage.AppendTurns(anchorKey,
		storage.Turn{IsUser: true, Text: userText},
		storage.Turn{IsUser: false, Text: modelText},
	)
	if err != nil {
		log.Printf("error appending turns to %s: %v", anchorKey, err)
		return
	}
	for _, key := range mirrorKeys {
		if err := sm.storage.PutThread(key, thread); err != nil {
			log.Printf("error mirroring thread to %s: %v", key, err)
		}
	}
}

// SaveRecord stores the generation record under every given key.
func (sm *SessionManager) SaveRecord(record *storage.GenerationRecord, keys ...string) {
	for _, key := range keys {
		if err := sm.storage.PutRecord(key, record); err != nil {
			log.Printf("error saving generation record %s: %v", key, err)
		}
	}
}

func (sm *SessionManager) Close() error {
	return sm.storage.Close()
}
