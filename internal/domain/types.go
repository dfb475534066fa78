package domain

import "fmt"

// Action is the closed set of verbs accepted on the ingestion boundary.
// Unrecognized verbs are rejected before anything is persisted.
type Action string

const (
	ActionCreate             Action = "CREATE"
	ActionDelete             Action = "DELETE"
	ActionAdd                Action = "ADD"
	ActionRemove             Action = "REMOVE"
	ActionReply              Action = "REPLY"
	ActionLike               Action = "LIKE"
	ActionRearrange          Action = "REARRANGE"
	ActionChangeTitle        Action = "CHANGE_TITLE"
	ActionChangeDescription  Action = "CHANGE_DESCRIPTION"
	ActionChangeCoverPhoto   Action = "CHANGE_COVER_PHOTO"
	ActionAddCollaborator    Action = "ADD_COLLABORATOR"
	ActionRemoveCollaborator Action = "REMOVE_COLLABORATOR"
	ActionAddViewer          Action = "ADD_VIEWER"
	ActionRemoveViewer       Action = "REMOVE_VIEWER"
	ActionFollow             Action = "FOLLOW"
)

var knownActions = map[Action]struct{}{
	ActionCreate: {}, ActionDelete: {}, ActionAdd: {}, ActionRemove: {},
	ActionReply: {}, ActionLike: {}, ActionRearrange: {},
	ActionChangeTitle: {}, ActionChangeDescription: {}, ActionChangeCoverPhoto: {},
	ActionAddCollaborator: {}, ActionRemoveCollaborator: {},
	ActionAddViewer: {}, ActionRemoveViewer: {}, ActionFollow: {},
}

// ParseAction validates a raw verb against the closed Action set.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := knownActions[a]; !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidNotification, s)
	}
	return a, nil
}

// NotificationType is the resolved kind of a notification, derived from the
// raw action verb and the reference-id shape of the event.
type NotificationType string

const (
	TypeLikePhoto NotificationType = "LIKE_PHOTO"

	TypeAddPhoto    NotificationType = "ADD_PHOTO"
	TypeRemovePhoto NotificationType = "REMOVE_PHOTO"

	TypeCreateMoment            NotificationType = "CREATE_MOMENT"
	TypeDeleteMoment            NotificationType = "DELETE_MOMENT"
	TypeRearrangeMoments        NotificationType = "REARRANGE_MOMENTS"
	TypeChangeMomentTitle       NotificationType = "CHANGE_MOMENT_TITLE"
	TypeChangeMomentDescription NotificationType = "CHANGE_MOMENT_DESCRIPTION"
	TypeChangeMomentCoverPhoto  NotificationType = "CHANGE_MOMENT_COVER_PHOTO"

	TypeAddComment   NotificationType = "ADD_COMMENT"
	TypeReplyComment NotificationType = "REPLY_COMMENT"

	TypeCreateTrip            NotificationType = "CREATE_TRIP"
	TypeDeleteTrip            NotificationType = "DELETE_TRIP"
	TypeChangeTripTitle       NotificationType = "CHANGE_TRIP_TITLE"
	TypeChangeTripDescription NotificationType = "CHANGE_TRIP_DESCRIPTION"
	TypeChangeTripCoverPhoto  NotificationType = "CHANGE_TRIP_COVER_PHOTO"
	TypeAddCollaborator       NotificationType = "ADD_COLLABORATOR"
	TypeRemoveCollaborator    NotificationType = "REMOVE_COLLABORATOR"
	TypeAddViewer             NotificationType = "ADD_VIEWER"
	TypeRemoveViewer          NotificationType = "REMOVE_VIEWER"

	TypeFollowUser NotificationType = "FOLLOW_USER"

	// TypeHealthcheck is a liveness pseudo-type used only on the live
	// distribution channel. It is never persisted and never bundled.
	TypeHealthcheck NotificationType = "HEALTHCHECK"
)
