package postgres

import (
	"context"
	"testing"
	"time"

	"hero-mint-service/internal/core/domain"
	"hero-mint-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAsset() *domain.NftAsset {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.NftAsset{
		ID:           uuid.New(),
		TokenID:      domain.NewTokenID(),
		CollectionID: "hero-badges",
		MetadataURI:  "http://localhost:8080/api/v1/assets/t/metadata",
		ImageURI:     "http://localhost:8080/api/v1/assets/t/image",
		Attributes: []domain.Attribute{
			{TraitType: "theme", Value: "watercolor"},
			{TraitType: "category", Value: "coastal"},
		},
		CreatedByUserID: "hero-1",
		Status:          domain.AssetStatusMinted,
		ImageData:       []byte{0x89, 'P', 'N', 'G'},
		ImageMimeType:   "image/png",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestAssetRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	a := newTestAsset()
	attrs := []byte(`[{"trait_type":"theme","value":"watercolor"},{"trait_type":"category","value":"coastal"}]`)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO nft_assets").
		WithArgs(a.ID, a.TokenID, a.CollectionID, a.MetadataURI, a.ImageURI, attrs,
			a.CreatedByUserID, "MINTED", a.ImageData, "image/png", a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.Create(context.Background(), tx, a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_GetByTokenID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)
	a := newTestAsset()
	cols := []string{"id", "token_id", "collection_id", "metadata_uri", "image_uri", "attributes",
		"created_by_user_id", "status", "image_mime_type", "created_at", "updated_at"}

	mock.ExpectQuery("SELECT .+ FROM nft_assets WHERE token_id").
		WithArgs(a.TokenID).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			a.ID, a.TokenID, a.CollectionID, a.MetadataURI, a.ImageURI,
			[]byte(`[{"trait_type":"theme","value":"watercolor"},{"trait_type":"category","value":"coastal"}]`),
			a.CreatedByUserID, "MINTED", a.ImageMimeType, a.CreatedAt, a.UpdatedAt,
		))

	got, err := repo.GetByTokenID(context.Background(), a.TokenID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.Attributes, got.Attributes, "attribute order is preserved")
	assert.Equal(t, domain.AssetStatusMinted, got.Status)
	assert.Nil(t, got.ImageData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_GetImage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)

	mock.ExpectQuery("SELECT image_data, image_mime_type FROM nft_assets").
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"image_data", "image_mime_type"}).
			AddRow([]byte("GIF89a"), "image/gif"))
	mock.ExpectQuery("SELECT image_data, image_mime_type FROM nft_assets").
		WithArgs("tok-unknown").
		WillReturnRows(pgxmock.NewRows([]string{"image_data", "image_mime_type"}))

	data, mimeType, err := repo.GetImage(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("GIF89a"), data)
	assert.Equal(t, "image/gif", mimeType)

	data, _, err = repo.GetImage(context.Background(), "tok-unknown")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAssetRepo(mock)

	mock.ExpectExec("UPDATE nft_assets SET status = \\$3, .+ WHERE token_id = \\$1 AND status = \\$2").
		WithArgs("tok-1", "MINTED", "BURNED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE nft_assets").
		WithArgs("tok-1", "MINTED", "BURNED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "tok-1", domain.AssetStatusMinted, domain.AssetStatusBurned))

	err = repo.UpdateStatus(context.Background(), nil, "tok-1", domain.AssetStatusMinted, domain.AssetStatusBurned)
	assert.ErrorIs(t, err, ports.ErrConditionNotMet)
	assert.NoError(t, mock.ExpectationsWereMet())
}
