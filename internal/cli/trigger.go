package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/mq"
)

// NewTriggerCmd создаёт команду публикации события record.changed.
func NewTriggerCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	var (
		entity   string
		recordID string
		message  string
		userID   string
	)

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Publish a record.changed event for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(recordID)
			if err != nil {
				return fmt.Errorf("invalid --id %q: %w", recordID, err)
			}
			if message != domain.MessageCreate && message != domain.MessageUpdate {
				return fmt.Errorf("invalid --message %q (want %s or %s)", message, domain.MessageCreate, domain.MessageUpdate)
			}
			user := uuid.Nil
			if userID != "" {
				if user, err = uuid.Parse(userID); err != nil {
					return fmt.Errorf("invalid --user %q: %w", userID, err)
				}
			}

			publisher, err := envFn().Publisher(cmd.Context())
			if err != nil {
				return err
			}

			payload := mq.RecordChangedPayload{
				EventID:          uuid.New(),
				EntityName:       entity,
				RecordID:         id,
				Message:          message,
				Depth:            1,
				InitiatingUserID: user,
			}
			payload.CorrelationID = payload.EventID

			if err := publisher.PublishRecordChanged(cmd.Context(), payload); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Event published: %s", payload.EventID))
			out.Print(
				[]string{"EVENT_ID", "ENTITY", "RECORD_ID", "MESSAGE", "DEPTH"},
				[][]string{{payload.EventID.String(), entity, id.String(), message, strconv.Itoa(payload.Depth)}},
				payload,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "Entity name of the changed record")
	cmd.Flags().StringVar(&recordID, "id", "", "Changed record ID")
	cmd.Flags().StringVar(&message, "message", domain.MessageUpdate, "Change message (create, update)")
	cmd.Flags().StringVar(&userID, "user", "", "Initiating user ID")
	cmd.MarkFlagRequired("entity")
	cmd.MarkFlagRequired("id")

	return cmd
}
