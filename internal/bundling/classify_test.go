package bundling

import (
	"errors"
	"testing"

	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(action domain.Action) domain.RawNotification {
	return domain.RawNotification{
		SenderID:    "alice",
		ReceiverIDs: []string{"recipient1"},
		Action:      action,
	}
}

func TestClassify_PhotoShape(t *testing.T) {
	n := raw(domain.ActionAdd)
	n.CollectionReferenceID = ref(1)
	n.NodeReferenceID = ref(2)
	n.MediaReferenceID = ref(3)

	typ, err := Classify(n)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeAddPhoto, typ)

	n.Action = domain.ActionRemove
	typ, err = Classify(n)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeRemovePhoto, typ)
}

func TestClassify_MomentShape(t *testing.T) {
	cases := map[domain.Action]domain.NotificationType{
		domain.ActionCreate:            domain.TypeCreateMoment,
		domain.ActionDelete:            domain.TypeDeleteMoment,
		domain.ActionRearrange:         domain.TypeRearrangeMoments,
		domain.ActionChangeTitle:       domain.TypeChangeMomentTitle,
		domain.ActionChangeDescription: domain.TypeChangeMomentDescription,
		domain.ActionChangeCoverPhoto:  domain.TypeChangeMomentCoverPhoto,
	}
	for action, want := range cases {
		n := raw(action)
		n.CollectionReferenceID = ref(1)
		n.NodeReferenceID = ref(2)

		typ, err := Classify(n)
		require.NoError(t, err, "action %s", action)
		assert.Equal(t, want, typ, "action %s", action)
	}
}

func TestClassify_TripShape(t *testing.T) {
	cases := map[domain.Action]domain.NotificationType{
		domain.ActionCreate:             domain.TypeCreateTrip,
		domain.ActionDelete:             domain.TypeDeleteTrip,
		domain.ActionChangeTitle:        domain.TypeChangeTripTitle,
		domain.ActionChangeDescription:  domain.TypeChangeTripDescription,
		domain.ActionChangeCoverPhoto:   domain.TypeChangeTripCoverPhoto,
		domain.ActionAddCollaborator:    domain.TypeAddCollaborator,
		domain.ActionRemoveCollaborator: domain.TypeRemoveCollaborator,
		domain.ActionAddViewer:          domain.TypeAddViewer,
		domain.ActionRemoveViewer:       domain.TypeRemoveViewer,
	}
	for action, want := range cases {
		n := raw(action)
		n.CollectionReferenceID = ref(1)

		typ, err := Classify(n)
		require.NoError(t, err, "action %s", action)
		assert.Equal(t, want, typ, "action %s", action)
	}
}

func TestClassify_CommentShape(t *testing.T) {
	n := raw(domain.ActionAdd)
	n.MediaReferenceID = ref(3)
	n.CommentReferenceID = ref(4)

	typ, err := Classify(n)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeAddComment, typ)

	n.Action = domain.ActionReply
	typ, err = Classify(n)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeReplyComment, typ)
}

func TestClassify_LikeShape(t *testing.T) {
	n := raw(domain.ActionLike)
	n.MediaReferenceID = ref(3)

	typ, err := Classify(n)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeLikePhoto, typ)
}

func TestClassify_FollowShape(t *testing.T) {
	typ, err := Classify(raw(domain.ActionFollow))
	require.NoError(t, err)
	assert.Equal(t, domain.TypeFollowUser, typ)
}

func TestClassify_ActionShapeMismatch(t *testing.T) {
	// LIKE against a full photo shape is not a defined combination.
	n := raw(domain.ActionLike)
	n.CollectionReferenceID = ref(1)
	n.NodeReferenceID = ref(2)
	n.MediaReferenceID = ref(3)

	_, err := Classify(n)
	assert.True(t, errors.Is(err, domain.ErrInvalidNotification))

	// FOLLOW with a media reference does not match the bare shape.
	n = raw(domain.ActionFollow)
	n.MediaReferenceID = ref(3)
	_, err = Classify(n)
	assert.True(t, errors.Is(err, domain.ErrInvalidNotification))
}
