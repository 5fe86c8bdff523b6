package processor

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Jntvanlanschot/Vastgoedanalyse/config"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/database"
	"github.com/Jntvanlanschot/Vastgoedanalyse/internal/models"
)

// MockDB is a mock implementation of *gorm.DB
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Transaction(fc func(*gorm.DB) error, opts ...*sql.TxOptions) error {
	args := m.Called(fc)
	return args.Error(0)
}

func testConfig(batchSize, retries int) *config.Config {
	cfg := &config.Config{}
	cfg.BatchProcessing.MaxBatchSize = batchSize
	cfg.BatchProcessing.MaxRetries = retries
	cfg.BatchProcessing.RetryDelay = 0
	return cfg
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func records(n int) []models.MergedRecord {
	out := make([]models.MergedRecord, n)
	for i := range out {
		out[i].PropertyRecord = models.NewPropertyRecord()
		out[i].AddressFull = fmt.Sprintf("Kerkstraat %d", i+1)
		out[i].MatchType = models.MatchNone
	}
	return out
}

func TestNewBatchWriter(t *testing.T) {
	mockDB := &MockDB{}
	cfg := testConfig(100, 3)
	logger := logrus.New()

	writer := NewBatchWriter(mockDB, cfg, logger)

	assert.NotNil(t, writer)
	assert.Equal(t, mockDB, writer.db)
	assert.Equal(t, cfg, writer.config)
	assert.Equal(t, logger, writer.logger)
}

func TestBatchWriter_ProcessBatch(t *testing.T) {
	mockDB := &MockDB{}
	writer := NewBatchWriter(mockDB, testConfig(100, 3), quietLogger())
	batch := records(2)

	// Test successful processing
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()
	err := writer.processBatch("run", batch)
	assert.NoError(t, err)

	// Test retry on failure
	mockDB.On("Transaction", mock.Anything).Return(errors.New("db error")).Times(3)
	err = writer.processBatch("run", batch)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process batch after 3 attempts")
	mockDB.AssertNumberOfCalls(t, "Transaction", 4)
}

func TestBatchWriter_RetryRecovers(t *testing.T) {
	mockDB := &MockDB{}
	writer := NewBatchWriter(mockDB, testConfig(100, 3), quietLogger())

	mockDB.On("Transaction", mock.Anything).Return(errors.New("database is locked")).Once()
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()

	assert.NoError(t, writer.processBatch("run", records(1)))
	mockDB.AssertExpectations(t)
}

func TestBatchWriter_WriteChunks(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int
		records   int
		wantCalls int
	}{
		{name: "exact multiple", batchSize: 2, records: 4, wantCalls: 2},
		{name: "remainder", batchSize: 2, records: 5, wantCalls: 3},
		{name: "single chunk", batchSize: 100, records: 5, wantCalls: 1},
		{name: "unbounded", batchSize: 0, records: 5, wantCalls: 1},
		{name: "empty", batchSize: 2, records: 0, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := &MockDB{}
			mockDB.On("Transaction", mock.Anything).Return(nil)

			writer := NewBatchWriter(mockDB, testConfig(tt.batchSize, 3), quietLogger())
			require.NoError(t, writer.Write("run", records(tt.records)))
			mockDB.AssertNumberOfCalls(t, "Transaction", tt.wantCalls)
		})
	}
}

func TestBatchWriter_WriteStopsOnFailure(t *testing.T) {
	mockDB := &MockDB{}
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()
	mockDB.On("Transaction", mock.Anything).Return(errors.New("disk full"))

	writer := NewBatchWriter(mockDB, testConfig(2, 2), quietLogger())
	err := writer.Write("run", records(6))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records 2-4")
	assert.Contains(t, err.Error(), "disk full")
	mockDB.AssertNumberOfCalls(t, "Transaction", 3)
}

func TestBatchWriterIntegration(t *testing.T) {
	db, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())

	run, err := db.CreateRun("merge", "Keizersgracht 100")
	require.NoError(t, err)

	writer := NewBatchWriter(db.GetDB(), testConfig(3, 3), quietLogger())
	require.NoError(t, writer.Write(run.ID, records(7)))

	stored, err := db.ListMerged(run.ID, "")
	require.NoError(t, err)
	require.Len(t, stored, 7)
	assert.Equal(t, "Kerkstraat 1", stored[0].AddressFull)
	assert.Equal(t, "Kerkstraat 7", stored[6].AddressFull)

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.MergedCount)
}
