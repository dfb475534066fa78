package bundling

import (
	"fmt"

	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
)

// Classify resolves a raw event's notification type from its action verb and
// the shape of its reference ids (which optional ids are present). It is a
// pure function; an action/shape combination outside the table below is a
// classification error and the event must be skipped by the caller.
func Classify(raw domain.RawNotification) (domain.NotificationType, error) {
	hasCollection := raw.CollectionReferenceID != nil
	hasNode := raw.NodeReferenceID != nil
	hasMedia := raw.MediaReferenceID != nil
	hasComment := raw.CommentReferenceID != nil

	switch {
	case hasCollection && hasNode && hasMedia:
		switch raw.Action {
		case domain.ActionAdd:
			return domain.TypeAddPhoto, nil
		case domain.ActionRemove:
			return domain.TypeRemovePhoto, nil
		}

	case hasCollection && hasNode:
		switch raw.Action {
		case domain.ActionCreate:
			return domain.TypeCreateMoment, nil
		case domain.ActionDelete:
			return domain.TypeDeleteMoment, nil
		case domain.ActionRearrange:
			return domain.TypeRearrangeMoments, nil
		case domain.ActionChangeTitle:
			return domain.TypeChangeMomentTitle, nil
		case domain.ActionChangeDescription:
			return domain.TypeChangeMomentDescription, nil
		case domain.ActionChangeCoverPhoto:
			return domain.TypeChangeMomentCoverPhoto, nil
		}

	case hasCollection:
		switch raw.Action {
		case domain.ActionCreate:
			return domain.TypeCreateTrip, nil
		case domain.ActionDelete:
			return domain.TypeDeleteTrip, nil
		case domain.ActionChangeTitle:
			return domain.TypeChangeTripTitle, nil
		case domain.ActionChangeDescription:
			return domain.TypeChangeTripDescription, nil
		case domain.ActionChangeCoverPhoto:
			return domain.TypeChangeTripCoverPhoto, nil
		case domain.ActionAddCollaborator:
			return domain.TypeAddCollaborator, nil
		case domain.ActionRemoveCollaborator:
			return domain.TypeRemoveCollaborator, nil
		case domain.ActionAddViewer:
			return domain.TypeAddViewer, nil
		case domain.ActionRemoveViewer:
			return domain.TypeRemoveViewer, nil
		}

	case hasMedia && hasComment:
		switch raw.Action {
		case domain.ActionAdd:
			return domain.TypeAddComment, nil
		case domain.ActionReply:
			return domain.TypeReplyComment, nil
		}

	case hasMedia:
		if raw.Action == domain.ActionLike {
			return domain.TypeLikePhoto, nil
		}

	case !hasComment:
		if raw.Action == domain.ActionFollow {
			return domain.TypeFollowUser, nil
		}
	}

	return "", fmt.Errorf("%w: action %q does not match reference shape (collection=%t node=%t media=%t comment=%t)",
		domain.ErrInvalidNotification, raw.Action, hasCollection, hasNode, hasMedia, hasComment)
}
