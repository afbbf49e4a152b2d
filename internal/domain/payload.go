package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback payload grammar. Paging tokens have their own codec in the
// navigation package; everything else is a small fixed-shape payload built
// and parsed here so handlers and keyboards cannot drift apart.
const (
	PayloadNoop          = "noop"
	PayloadBackToList    = "back"
	PayloadShareList     = "share"
	PayloadViewNewEvents = "new-events"
	PayloadViewUpdates   = "upd-events"

	payloadDetail     = "ev"
	payloadTag        = "tag"
	payloadDay        = "day"
	payloadLocation   = "loc"
	payloadListAdd    = "list-add"
	payloadListRemove = "list-rm"
	payloadShowList   = "list-show"
	payloadFavorite   = "fav"
)

func DetailPayload(eventID int64) string {
	return fmt.Sprintf("%s:%d", payloadDetail, eventID)
}

func ParseDetailPayload(payload string) (int64, bool) {
	return parseIDPayload(payload, payloadDetail)
}

func TagPayload(tagSpec string) string {
	return payloadTag + ":" + tagSpec
}

func ParseTagPayload(payload string) (string, bool) {
	return strings.CutPrefix(payload, payloadTag+":")
}

func DayPayload(day string) string {
	return payloadDay + ":" + day
}

func ParseDayPayload(payload string) (string, bool) {
	return strings.CutPrefix(payload, payloadDay+":")
}

func LocationPayload(location string) string {
	return payloadLocation + ":" + location
}

func ParseLocationPayload(payload string) (string, bool) {
	return strings.CutPrefix(payload, payloadLocation+":")
}

// AddToListPayload / RemoveFromListPayload carry both the event and the
// destination list.
func AddToListPayload(eventID, listID int64) string {
	return fmt.Sprintf("%s:%d:%d", payloadListAdd, eventID, listID)
}

func RemoveFromListPayload(eventID, listID int64) string {
	return fmt.Sprintf("%s:%d:%d", payloadListRemove, eventID, listID)
}

func ParseListMutationPayload(payload string) (eventID, listID int64, add, ok bool) {
	var prefix string
	switch {
	case strings.HasPrefix(payload, payloadListAdd+":"):
		prefix, add = payloadListAdd, true
	case strings.HasPrefix(payload, payloadListRemove+":"):
		prefix, add = payloadListRemove, false
	default:
		return 0, 0, false, false
	}
	parts := strings.Split(strings.TrimPrefix(payload, prefix+":"), ":")
	if len(parts) != 2 {
		return 0, 0, false, false
	}
	eventID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false, false
	}
	listID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false, false
	}
	return eventID, listID, add, true
}

func ShowListPayload(listID int64) string {
	return fmt.Sprintf("%s:%d", payloadShowList, listID)
}

func ParseShowListPayload(payload string) (int64, bool) {
	return parseIDPayload(payload, payloadShowList)
}

func FavoritePayload(listID int64) string {
	return fmt.Sprintf("%s:%d", payloadFavorite, listID)
}

func ParseFavoritePayload(payload string) (int64, bool) {
	return parseIDPayload(payload, payloadFavorite)
}

func parseIDPayload(payload, prefix string) (int64, bool) {
	body, found := strings.CutPrefix(payload, prefix+":")
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
