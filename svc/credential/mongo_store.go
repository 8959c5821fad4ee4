package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultMongoCollection is the collection holding credential documents.
const DefaultMongoCollection = "users"

// mongoUser is the stored document. Field names follow the users collection
// of the existing deployment so records created before the port load as is.
type mongoUser struct {
	ID              bson.ObjectID      `bson:"_id"`
	Username        string             `bson:"username"`
	Password        string             `bson:"password"`
	Role            string             `bson:"role"`
	FullName        string             `bson:"fullName,omitempty"`
	Email           string             `bson:"email,omitempty"`
	IsActive        bool               `bson:"isActive"`
	IsEmailVerified bool               `bson:"isEmailVerified"`
	PendingEmail    string             `bson:"pendingEmail,omitempty"`
	ResetToken      string             `bson:"passwordResetToken,omitempty"`
	ResetExpires    *time.Time         `bson:"passwordResetExpires,omitempty"`
	VerifyToken     string             `bson:"emailVerificationToken,omitempty"`
	VerifyExpires   *time.Time         `bson:"emailVerificationExpires,omitempty"`
	VerifiedToken   string             `bson:"emailVerifiedToken,omitempty"`
	OTPCode         string             `bson:"otpCode,omitempty"`
	OTPExpires      *time.Time         `bson:"otpExpires,omitempty"`
	OTPAttempts     int                `bson:"otpAttempts,omitempty"`
	LoginHistory    []mongoLoginRecord `bson:"loginHistory,omitempty"`
	LastLogin       *time.Time         `bson:"lastLogin,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

type mongoLoginRecord struct {
	LoginTime time.Time `bson:"loginTime"`
	IPAddress string    `bson:"ipAddress,omitempty"`
	UserAgent string    `bson:"userAgent,omitempty"`
	Success   bool      `bson:"success"`
}

// grantFields maps a purpose to its token field, expiry field and, for
// OTPs, the attempts counter.
var grantFields = map[Purpose][3]string{
	PurposePasswordReset:     {"passwordResetToken", "passwordResetExpires", ""},
	PurposeEmailVerification: {"emailVerificationToken", "emailVerificationExpires", ""},
	PurposeOTP:               {"otpCode", "otpExpires", "otpAttempts"},
}

// MongoStore is a Repository over a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ Repository = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll: db.Collection(DefaultMongoCollection),
		now:  time.Now,
	}
}

// mongoIndexes lists the indexes the store relies on. Names are left to the
// server, so the identity indexes match the username_1 and email_1 indexes
// an existing users collection already carries.
func mongoIndexes() []mongo.IndexModel {
	nonEmptyEmail := bson.M{"email": bson.M{"$type": "string", "$gt": ""}}
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(nonEmptyEmail),
		},
		{Keys: bson.D{{Key: "passwordResetToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "emailVerificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "emailVerifiedToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
}

// indexKey is a key pattern rendered as "field:dir,..." for comparison.
func indexKey(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, e := range keys {
		// int32(1), int64(1) and 1.0 all print as "1".
		parts = append(parts, e.Key+":"+fmt.Sprint(e.Value))
	}
	return strings.Join(parts, ",")
}

// missingIndexes drops the wanted models whose key pattern already exists,
// whatever the existing index is named or how it is filtered.
func missingIndexes(existing []bson.D, wanted []mongo.IndexModel) []mongo.IndexModel {
	have := make(map[string]bool, len(existing))
	for _, keys := range existing {
		have[indexKey(keys)] = true
	}
	out := make([]mongo.IndexModel, 0, len(wanted))
	for _, m := range wanted {
		if !have[indexKey(m.Keys.(bson.D))] {
			out = append(out, m)
		}
	}
	return out
}

// EnsureIndexes creates the unique identity indexes and the token lookup
// indexes that are not there yet. Safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	cur, err := s.coll.Indexes().List(ctx)
	if err != nil {
		return translateMongoErr(err)
	}
	var specs []struct {
		Key bson.D `bson:"key"`
	}
	if err := cur.All(ctx, &specs); err != nil {
		return translateMongoErr(err)
	}
	existing := make([]bson.D, 0, len(specs))
	for _, spec := range specs {
		existing = append(existing, spec.Key)
	}

	missing := missingIndexes(existing, mongoIndexes())
	if len(missing) == 0 {
		return nil
	}
	_, err = s.coll.Indexes().CreateMany(ctx, missing)
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(codeIndexOptionsConflict) || se.HasErrorCode(codeIndexKeySpecsConflict)) {
		return nil
	}
	return translateMongoErr(err)
}

// Server codes for an index that exists under other options or name.
const (
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

func (s *MongoStore) FindByID(ctx context.Context, id string) (*Record, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*Record, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*Record, error) {
	if email == "" {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByTokenFingerprint(ctx context.Context, purpose Purpose, fingerprint string) (*Record, error) {
	if fingerprint == "" {
		return nil, ErrNotFound
	}
	if purpose == PurposeEmailVerified {
		return s.findOne(ctx, bson.M{"emailVerifiedToken": fingerprint})
	}
	fields, ok := grantFields[purpose]
	if !ok {
		return nil, ErrInvalidRecord
	}
	return s.findOne(ctx, bson.M{fields[0]: fingerprint})
}

func (s *MongoStore) UsernameTakenExcludingID(ctx context.Context, username, id string) (bool, error) {
	return s.exists(ctx, excludingID(bson.M{"username": username}, id))
}

func (s *MongoStore) EmailTakenExcludingID(ctx context.Context, email, id string) (bool, error) {
	if email == "" {
		return false, nil
	}
	return s.exists(ctx, excludingID(bson.M{"email": email}, id))
}

func (s *MongoStore) Create(ctx context.Context, rec *Record) error {
	if err := validateNew(rec); err != nil {
		return err
	}

	oid := bson.NewObjectID()
	if rec.ID != "" {
		parsed, err := bson.ObjectIDFromHex(rec.ID)
		if err != nil {
			return ErrInvalidRecord
		}
		oid = parsed
	}

	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	doc := toMongoUser(rec)
	doc.ID = oid
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return translateMongoErr(err)
	}
	rec.ID = oid.Hex()
	return nil
}

func (s *MongoStore) UpdateFields(ctx context.Context, id string, upd Update) error {
	if err := upd.validate(); err != nil {
		return err
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, mongoUpdate(upd, s.now().UTC()))
	if err != nil {
		return translateMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ConsumeToken(ctx context.Context, claim Claim, upd Update) (*Record, error) {
	if err := claim.validate(); err != nil {
		return nil, err
	}
	if err := upd.validate(); err != nil {
		return nil, err
	}
	filter, err := mongoClaimFilter(claim)
	if err != nil {
		return nil, err
	}

	upd.Clear = append(upd.Clear[:len(upd.Clear):len(upd.Clear)], claim.Purpose)

	var doc mongoUser
	err = s.coll.FindOneAndUpdate(ctx, filter, mongoUpdate(upd, s.now().UTC()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenNotFound
		}
		return nil, translateMongoErr(err)
	}
	return doc.toRecord(), nil
}

func (s *MongoStore) IncrementOTPAttempts(ctx context.Context, id, fingerprint string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrTokenNotFound
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "otpCode": fingerprint},
		bson.M{
			"$inc": bson.M{"otpAttempts": 1},
			"$set": bson.M{"updatedAt": s.now().UTC()},
		},
	)
	if err != nil {
		return translateMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *MongoStore) AppendLogin(ctx context.Context, id string, attempt LoginAttempt, limit int) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	set := bson.M{"updatedAt": s.now().UTC()}
	if attempt.Success {
		set["lastLogin"] = attempt.At
	}
	push := bson.M{"$each": []mongoLoginRecord{toMongoLogin(attempt)}}
	if limit > 0 {
		push["$slice"] = -limit
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$push": bson.M{"loginHistory": push},
		"$set":  set,
	})
	if err != nil {
		return translateMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Record, error) {
	var doc mongoUser
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongoErr(err)
	}
	return doc.toRecord(), nil
}

func (s *MongoStore) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, translateMongoErr(err)
	}
	return n > 0, nil
}

func excludingID(filter bson.M, id string) bson.M {
	if id == "" {
		return filter
	}
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}
	return filter
}

func mongoClaimFilter(c Claim) (bson.M, error) {
	fields := grantFields[c.Purpose]
	filter := bson.M{
		fields[0]: c.Fingerprint,
		fields[1]: bson.M{"$gt": c.Now.UTC()},
	}
	if c.RecordID != "" {
		oid, err := bson.ObjectIDFromHex(c.RecordID)
		if err != nil {
			return nil, ErrTokenNotFound
		}
		filter["_id"] = oid
	}
	if c.MaxAttempts > 0 && fields[2] != "" {
		filter[fields[2]] = bson.M{"$not": bson.M{"$gte": c.MaxAttempts}}
	}
	if c.Unverified {
		filter["isEmailVerified"] = bson.M{"$ne": true}
	}
	return filter, nil
}

// mongoUpdate renders upd as an update document, or as an aggregation
// pipeline when the pending email has to be copied from the stored
// document. Pipeline values are wrapped in $literal so strings starting
// with "$" (bcrypt hashes) are not read as field paths.
func mongoUpdate(upd Update, now time.Time) any {
	set := bson.M{"updatedAt": now}
	var unset []string

	setOrUnset := func(field, value string) {
		if value == "" {
			unset = append(unset, field)
			return
		}
		set[field] = value
	}

	if upd.SecretHash != nil {
		set["password"] = *upd.SecretHash
	}
	if upd.Email != nil {
		setOrUnset("email", *upd.Email)
	}
	if upd.PendingEmail != nil {
		setOrUnset("pendingEmail", *upd.PendingEmail)
	}
	if upd.IsEmailVerified != nil {
		set["isEmailVerified"] = *upd.IsEmailVerified
	}
	if upd.IsActive != nil {
		set["isActive"] = *upd.IsActive
	}
	if upd.VerifiedFingerprint != nil {
		setOrUnset("emailVerifiedToken", *upd.VerifiedFingerprint)
	}
	for _, p := range upd.Clear {
		for _, f := range grantFields[p] {
			if f != "" {
				unset = append(unset, f)
			}
		}
	}
	if upd.Issue != nil {
		f := grantFields[upd.Issue.Purpose]
		set[f[0]] = upd.Issue.Grant.Fingerprint
		set[f[1]] = upd.Issue.Grant.ExpiresAt.UTC()
		if f[2] != "" {
			set[f[2]] = 0
		}
	}

	if !upd.PromotePendingEmail {
		doc := bson.M{"$set": set}
		if u := withoutSetFields(unset, set); len(u) > 0 {
			fields := bson.M{}
			for _, f := range u {
				fields[f] = ""
			}
			doc["$unset"] = fields
		}
		return doc
	}

	literal := bson.M{}
	for k, v := range set {
		literal[k] = bson.M{"$literal": v}
	}
	literal["email"] = "$pendingEmail"
	unset = withoutSetFields(append(unset, "pendingEmail"), literal)

	return mongo.Pipeline{
		{{Key: "$set", Value: literal}},
		{{Key: "$unset", Value: unset}},
	}
}

func withoutSetFields(unset []string, set bson.M) []string {
	out := make([]string, 0, len(unset))
	seen := make(map[string]bool, len(unset))
	for _, f := range unset {
		if _, ok := set[f]; ok || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func translateMongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicateIdentity
	default:
		return errors.Join(ErrStorage, err)
	}
}

func toMongoUser(r *Record) mongoUser {
	doc := mongoUser{
		Username:        r.Username,
		Password:        r.SecretHash,
		Role:            string(r.Role),
		FullName:        r.FullName,
		Email:           r.Email,
		IsActive:        r.IsActive,
		IsEmailVerified: r.IsEmailVerified,
		PendingEmail:    r.PendingEmail,
		VerifiedToken:   r.VerifiedFingerprint,
		OTPAttempts:     r.OTPAttempts,
		LastLogin:       r.LastLoginAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if g := r.PasswordReset; g != nil {
		doc.ResetToken, doc.ResetExpires = g.Fingerprint, &g.ExpiresAt
	}
	if g := r.EmailVerification; g != nil {
		doc.VerifyToken, doc.VerifyExpires = g.Fingerprint, &g.ExpiresAt
	}
	if g := r.OTP; g != nil {
		doc.OTPCode, doc.OTPExpires = g.Fingerprint, &g.ExpiresAt
	}
	for _, a := range r.LoginHistory {
		doc.LoginHistory = append(doc.LoginHistory, toMongoLogin(a))
	}
	return doc
}

func toMongoLogin(a LoginAttempt) mongoLoginRecord {
	return mongoLoginRecord{
		LoginTime: a.At,
		IPAddress: a.IPAddress,
		UserAgent: a.UserAgent,
		Success:   a.Success,
	}
}

func (d mongoUser) toRecord() *Record {
	r := &Record{
		ID:                  d.ID.Hex(),
		Username:            d.Username,
		Email:               d.Email,
		FullName:            d.FullName,
		SecretHash:          d.Password,
		Role:                Role(d.Role),
		IsActive:            d.IsActive,
		IsEmailVerified:     d.IsEmailVerified,
		PendingEmail:        d.PendingEmail,
		VerifiedFingerprint: d.VerifiedToken,
		OTPAttempts:         d.OTPAttempts,
		LastLoginAt:         d.LastLogin,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	r.PasswordReset = mongoGrant(d.ResetToken, d.ResetExpires)
	r.EmailVerification = mongoGrant(d.VerifyToken, d.VerifyExpires)
	r.OTP = mongoGrant(d.OTPCode, d.OTPExpires)
	for _, l := range d.LoginHistory {
		r.LoginHistory = append(r.LoginHistory, LoginAttempt{
			At:        l.LoginTime,
			IPAddress: l.IPAddress,
			UserAgent: l.UserAgent,
			Success:   l.Success,
		})
	}
	return r
}

func mongoGrant(fp string, exp *time.Time) *Grant {
	if fp == "" || exp == nil {
		return nil
	}
	return &Grant{Fingerprint: fp, ExpiresAt: *exp}
}
