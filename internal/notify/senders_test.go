package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/wneessen/go-mail"
)

type fakeMailClient struct {
	sent []*mail.Msg
}

func (c *fakeMailClient) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	c.sent = append(c.sent, messages...)
	return nil
}

func TestEmailSender_Send(t *testing.T) {
	client := &fakeMailClient{}
	sender := &EmailSender{client: client, from: "noreply@example.com"}

	err := sender.Send(context.Background(), Message{
		Kind:    KindEmail,
		To:      "a@x.com",
		Subject: "New task assigned",
		Body:    "You have been assigned <Write report>",
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, []string{"<a@x.com>"}, client.sent[0].GetToString())
	assert.Equal(t, []string{"New task assigned"}, client.sent[0].GetGenHeader(mail.HeaderSubject))
}

func TestEmailSender_RejectsBadAddress(t *testing.T) {
	sender := &EmailSender{client: &fakeMailClient{}, from: "noreply@example.com"}

	err := sender.Send(context.Background(), Message{Kind: KindEmail, To: "not an address"})
	require.Error(t, err)
}

type fakeMessageCreator struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeMessageCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.params = append(f.params, params)
	return &twilioApi.ApiV2010Message{}, nil
}

func TestSMSSender_Send(t *testing.T) {
	api := &fakeMessageCreator{}
	sender := &SMSSender{api: api, from: "+15550001111"}

	require.NoError(t, sender.Send(context.Background(), Message{Kind: KindSMS, To: "+15552223333", Body: "Write report"}))
	require.Len(t, api.params, 1)
	assert.Equal(t, "+15552223333", *api.params[0].To)
	assert.Equal(t, "+15550001111", *api.params[0].From)
	assert.Equal(t, "Write report", *api.params[0].Body)

	api.err = errors.New("twilio 401")
	require.Error(t, sender.Send(context.Background(), Message{Kind: KindSMS, To: "+15552223333"}))
}
