package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/pkg/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	identityPrefix = "IDENTITY#"
	emailPrefix    = "EMAIL#"
	externalPrefix = "EXTERNAL#"

	profileSK = "PROFILE"
	guardSK   = "GUARD"

	conditionalCheckFailed = "ConditionalCheckFailed"
)

// DynamoConfig holds DynamoDB connection settings. Endpoint is set for
// DynamoDB Local and left empty for AWS.
type DynamoConfig struct {
	Region    string
	Endpoint  string
	TableName string
}

// NewDynamoClient loads AWS configuration and returns a DynamoDB client.
func NewDynamoClient(ctx context.Context, cfg DynamoConfig) (*dynamodb.Client, error) {
	var (
		awsCfg aws.Config
		err    error
	)

	if cfg.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.Endpoint,
						SigningRegion: cfg.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg), nil
}

// CreateDynamoTable creates the single table used by DynamoIdentityStore and
// waits until it is active. An existing table is left alone.
func CreateDynamoTable(ctx context.Context, client *dynamodb.Client, tableName string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, time.Minute); err != nil {
		return fmt.Errorf("wait for table: %w", err)
	}
	return nil
}

// dynamoAPI is the subset of the DynamoDB client the store uses.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// identityItem is the stored shape of an identity.
type identityItem struct {
	PK            string     `dynamodbav:"PK"`
	SK            string     `dynamodbav:"SK"`
	ID            string     `dynamodbav:"id"`
	Email         string     `dynamodbav:"email"`
	Name          string     `dynamodbav:"name"`
	DateOfBirth   *time.Time `dynamodbav:"date_of_birth,omitempty"`
	ExternalID    *string    `dynamodbav:"external_id,omitempty"`
	CodeHash      *string    `dynamodbav:"otp_hash,omitempty"`
	CodeExpiresAt *time.Time `dynamodbav:"otp_expires_at,omitempty"`
	VerifiedAt    *time.Time `dynamodbav:"verified_at,omitempty"`
	CreatedAt     time.Time  `dynamodbav:"created_at"`
	UpdatedAt     time.Time  `dynamodbav:"updated_at"`
}

// guardItem reserves a unique value for one identity.
type guardItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	IdentityID string `dynamodbav:"identity_id"`
}

func identityKey(id uuid.UUID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: identityPrefix + id.String()},
		"SK": &types.AttributeValueMemberS{Value: profileSK},
	}
}

func guardKey(prefix, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: prefix + value},
		"SK": &types.AttributeValueMemberS{Value: guardSK},
	}
}

func toIdentityItem(identity *domain.Identity) identityItem {
	return identityItem{
		PK:            identityPrefix + identity.ID.String(),
		SK:            profileSK,
		ID:            identity.ID.String(),
		Email:         identity.Email,
		Name:          identity.Name,
		DateOfBirth:   identity.DateOfBirth,
		ExternalID:    identity.ExternalID,
		CodeHash:      identity.CodeHash,
		CodeExpiresAt: identity.CodeExpiresAt,
		VerifiedAt:    identity.VerifiedAt,
		CreatedAt:     identity.CreatedAt,
		UpdatedAt:     identity.UpdatedAt,
	}
}

func fromIdentityItem(attrs map[string]types.AttributeValue) (*domain.Identity, error) {
	var item identityItem
	if err := attributevalue.UnmarshalMap(attrs, &item); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	id, err := uuid.Parse(item.ID)
	if err != nil {
		return nil, fmt.Errorf("parse identity id: %w", err)
	}
	return &domain.Identity{
		ID:            id,
		Email:         item.Email,
		Name:          item.Name,
		DateOfBirth:   item.DateOfBirth,
		ExternalID:    item.ExternalID,
		CodeHash:      item.CodeHash,
		CodeExpiresAt: item.CodeExpiresAt,
		VerifiedAt:    item.VerifiedAt,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}, nil
}

// DynamoIdentityStore keeps identities in a single DynamoDB table. Email and
// external id uniqueness is enforced with guard items written in the same
// transaction as the identity.
type DynamoIdentityStore struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoIdentityStore creates a DynamoDB-backed identity store.
func NewDynamoIdentityStore(client dynamoAPI, tableName string) *DynamoIdentityStore {
	return &DynamoIdentityStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// GetByID retrieves an identity by ID.
func (s *DynamoIdentityStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            identityKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if result.Item == nil {
		return nil, domain.ErrIdentityNotFound
	}
	return fromIdentityItem(result.Item)
}

// GetByEmail retrieves an identity by email.
func (s *DynamoIdentityStore) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	if email == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return s.getByGuard(ctx, emailPrefix, email)
}

// GetByExternalID retrieves an identity by OAuth subject.
func (s *DynamoIdentityStore) GetByExternalID(ctx context.Context, externalID string) (*domain.Identity, error) {
	return s.getByGuard(ctx, externalPrefix, externalID)
}

func (s *DynamoIdentityStore) getByGuard(ctx context.Context, prefix, value string) (*domain.Identity, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            guardKey(prefix, value),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get guard: %w", err)
	}
	if result.Item == nil {
		return nil, domain.ErrIdentityNotFound
	}

	var guard guardItem
	if err := attributevalue.UnmarshalMap(result.Item, &guard); err != nil {
		return nil, fmt.Errorf("unmarshal guard: %w", err)
	}
	id, err := uuid.Parse(guard.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("parse guard identity id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Create stores a new identity together with its uniqueness guards.
func (s *DynamoIdentityStore) Create(ctx context.Context, identity *domain.Identity) error {
	now := s.now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	if identity.UpdatedAt.IsZero() {
		identity.UpdatedAt = now
	}

	item, err := attributevalue.MarshalMap(toIdentityItem(identity))
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	// Failures are reported per item in this order.
	failures := []error{domain.ErrIdentityAlreadyExists}
	writes := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(s.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}}

	if identity.Email != "" {
		put, err := s.guardPut(emailPrefix, identity.Email, identity.ID)
		if err != nil {
			return err
		}
		writes = append(writes, put)
		failures = append(failures, domain.ErrIdentityAlreadyExists)
	}
	if identity.ExternalID != nil {
		put, err := s.guardPut(externalPrefix, *identity.ExternalID, identity.ID)
		if err != nil {
			return err
		}
		writes = append(writes, put)
		failures = append(failures, domain.ErrExternalIDTaken)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		if failed, ok := failedConditions(err); ok {
			for i, reason := range failures {
				if i < len(failed) && failed[i] {
					return reason
				}
			}
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *DynamoIdentityStore) guardPut(prefix, value string, id uuid.UUID) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(guardItem{
		PK:         prefix + value,
		SK:         guardSK,
		IdentityID: id.String(),
	})
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal guard: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}, nil
}

// FindOrCreateForSignupChallenge creates a pending identity or refreshes the
// code of an existing pending one.
func (s *DynamoIdentityStore) FindOrCreateForSignupChallenge(ctx context.Context, challenge domain.SignupChallenge) (*domain.Identity, domain.ChallengeOutcome, error) {
	existing, err := s.GetByEmail(ctx, challenge.Email)
	if err == nil {
		return s.refreshPending(ctx, existing.ID, challenge)
	}
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, 0, err
	}

	hash := challenge.CodeHash
	expiresAt := challenge.CodeExpiresAt
	identity := &domain.Identity{
		ID:            uuid.New(),
		Email:         challenge.Email,
		Name:          challenge.Name,
		DateOfBirth:   challenge.DateOfBirth,
		CodeHash:      &hash,
		CodeExpiresAt: &expiresAt,
	}
	err = s.Create(ctx, identity)
	if errors.Is(err, domain.ErrIdentityAlreadyExists) {
		// Lost a race with another signup for the same email.
		existing, getErr := s.GetByEmail(ctx, challenge.Email)
		if getErr != nil {
			return nil, 0, getErr
		}
		return s.refreshPending(ctx, existing.ID, challenge)
	}
	if err != nil {
		return nil, 0, err
	}
	return identity, domain.ChallengeCreated, nil
}

func (s *DynamoIdentityStore) refreshPending(ctx context.Context, id uuid.UUID, challenge domain.SignupChallenge) (*domain.Identity, domain.ChallengeOutcome, error) {
	values, err := marshalValues(map[string]any{
		":hash":    challenge.CodeHash,
		":expires": challenge.CodeExpiresAt,
		":now":     s.now(),
		":empty":   "",
	})
	if err != nil {
		return nil, 0, err
	}

	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       identityKey(id),
		UpdateExpression:          aws.String("SET otp_hash = :hash, otp_expires_at = :expires, updated_at = :now"),
		ConditionExpression:       aws.String("attribute_exists(otp_hash) AND otp_hash <> :empty"),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionalCheckFailed(err) {
		return nil, 0, domain.ErrIdentityAlreadyExists
	}
	if err != nil {
		return nil, 0, fmt.Errorf("refresh challenge: %w", err)
	}

	identity, err := fromIdentityItem(result.Attributes)
	if err != nil {
		return nil, 0, err
	}
	return identity, domain.ChallengeExisting, nil
}

// SetChallenge overwrites the pending code of an identity.
func (s *DynamoIdentityStore) SetChallenge(ctx context.Context, id uuid.UUID, codeHash string, expiresAt time.Time) error {
	values, err := marshalValues(map[string]any{
		":hash":    codeHash,
		":expires": expiresAt,
		":now":     s.now(),
	})
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       identityKey(id),
		UpdateExpression:          aws.String("SET otp_hash = :hash, otp_expires_at = :expires, updated_at = :now"),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: values,
	})
	if isConditionalCheckFailed(err) {
		return domain.ErrIdentityNotFound
	}
	if err != nil {
		return fmt.Errorf("set challenge: %w", err)
	}
	return nil
}

// ClearChallenge clears the pending code only while it still equals
// expectedHash.
func (s *DynamoIdentityStore) ClearChallenge(ctx context.Context, id uuid.UUID, expectedHash string, verifiedAt *time.Time) (bool, error) {
	raw := map[string]any{
		":expected": expectedHash,
		":now":      s.now(),
	}
	update := "SET updated_at = :now"
	if verifiedAt != nil {
		raw[":verified"] = *verifiedAt
		update += ", verified_at = :verified"
	}
	update += " REMOVE otp_hash, otp_expires_at"

	values, err := marshalValues(raw)
	if err != nil {
		return false, err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       identityKey(id),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("otp_hash = :expected"),
		ExpressionAttributeValues: values,
	})
	if isConditionalCheckFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("clear challenge: %w", err)
	}
	return true, nil
}

// AttachExternalID links an OAuth subject to an identity that has none.
func (s *DynamoIdentityStore) AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	values, err := marshalValues(map[string]any{
		":external": externalID,
		":now":      s.now(),
	})
	if err != nil {
		return err
	}
	guard, err := s.guardPut(externalPrefix, externalID, id)
	if err != nil {
		return err
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:                 aws.String(s.tableName),
					Key:                       identityKey(id),
					UpdateExpression:          aws.String("SET external_id = :external, updated_at = :now"),
					ConditionExpression:       aws.String("attribute_exists(PK) AND attribute_not_exists(external_id)"),
					ExpressionAttributeValues: values,
				},
			},
			guard,
		},
	})
	if err == nil {
		return nil
	}

	failed, ok := failedConditions(err)
	if !ok {
		return fmt.Errorf("attach external id: %w", err)
	}
	if len(failed) > 0 && failed[0] {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return domain.ErrExternalIDTaken
}

func marshalValues(raw map[string]any) (map[string]types.AttributeValue, error) {
	values := make(map[string]types.AttributeValue, len(raw))
	for k, v := range raw {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", k, err)
		}
		values[k] = av
	}
	return values, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// failedConditions reports, per transaction item, whether its condition
// failed. ok is false when err is not a cancelled transaction.
func failedConditions(err error) (failed []bool, ok bool) {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return nil, false
	}
	failed = make([]bool, len(canceled.CancellationReasons))
	for i, reason := range canceled.CancellationReasons {
		failed[i] = aws.ToString(reason.Code) == conditionalCheckFailed
	}
	return failed, true
}
