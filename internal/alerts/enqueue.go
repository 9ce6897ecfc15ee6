package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

func enqueue(taskType string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := asynq.NewTask(taskType, b)
	_, err = ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// EnqueueRequestCreated notifies the provider about a new service request
func EnqueueRequestCreated(requestID, requesterID, providerID, providerEmail, requesterName, terms string) error {
	env := EmailEnvelope{
		To:      providerEmail,
		Subject: fmt.Sprintf("New service request from %s", requesterName),
		Body:    fmt.Sprintf("%s sent you a service request.\n\nTerms: %s\n\nOpen SkillSwap to accept, negotiate or decline.", requesterName, terms),
	}
	return enqueue(TaskRequestCreated, RequestCreatedPayload{
		RequestID:   requestID,
		RequesterID: requesterID,
		ProviderID:  providerID,
		Email:       providerEmail,
		Terms:       terms,
		Envelope:    env,
		SentAt:      time.Now(),
	})
}

// EnqueueRequestUpdated notifies the counterpart about a status change
func EnqueueRequestUpdated(requestID, actorID, status, recipientEmail, summary string) error {
	env := EmailEnvelope{
		To:      recipientEmail,
		Subject: "Service request update",
		Body:    summary,
	}
	return enqueue(TaskRequestUpdated, RequestUpdatedPayload{
		RequestID: requestID,
		ActorID:   actorID,
		Status:    status,
		Email:     recipientEmail,
		Envelope:  env,
		SentAt:    time.Now(),
	})
}

// EnqueueEscrowEvent notifies the counterpart about an escrow lifecycle event
func EnqueueEscrowEvent(escrowID, requestID, actorID, event, recipientEmail, summary string) error {
	env := EmailEnvelope{
		To:      recipientEmail,
		Subject: "Escrow update on your service request",
		Body:    summary,
	}
	return enqueue(TaskEscrowEvent, EscrowEventPayload{
		EscrowID:  escrowID,
		RequestID: requestID,
		ActorID:   actorID,
		Event:     event,
		Email:     recipientEmail,
		Envelope:  env,
		SentAt:    time.Now(),
	})
}

// EnqueueMessageNew notifies an offline recipient about a new chat message
func EnqueueMessageNew(messageID, senderID, senderName, recipientID, recipientEmail, previewText string) error {
	env := EmailEnvelope{
		To:      recipientEmail,
		Subject: fmt.Sprintf("New message from %s", senderName),
		Body:    fmt.Sprintf("%s sent you a message on SkillSwap:\n\n%s\n\nOpen SkillSwap to reply.", senderName, previewText),
	}
	return enqueue(TaskMessageNew, MessageNewPayload{
		MessageID:  messageID,
		SenderID:   senderID,
		SenderName: senderName,
		Recipient:  recipientID,
		Email:      recipientEmail,
		Preview:    previewText,
		Envelope:   env,
		SentAt:     time.Now(),
	})
}
