package memory

import (
	"testing"
	"time"

	sdk "github.com/qdrant/go-client/qdrant"
	. "github.com/smartystreets/goconvey/convey"
)

func TestQdrantCollection(t *testing.T) {
	Convey("Given identities bound to a Qdrant server", t, func() {
		production := Identity{Collection: ProductionCollection, Location: "/app/closer_memory_db"}
		first := Identity{IsTest: true, Collection: TestCollection, Location: "/tmp/closer-test-1/test_memory_db"}
		second := Identity{IsTest: true, Collection: TestCollection, Location: "/tmp/closer-test-2/test_memory_db"}

		Convey("Production should use the bare collection name", func() {
			So(qdrantCollection(production), ShouldEqual, ProductionCollection)
		})

		Convey("Each test location should get its own collection", func() {
			So(qdrantCollection(first), ShouldStartWith, TestCollection+"_")
			So(qdrantCollection(first), ShouldNotEqual, qdrantCollection(second))
			So(qdrantCollection(first), ShouldEqual, qdrantCollection(first))
		})
	})
}

func TestPayloadRecord(t *testing.T) {
	Convey("Given a point payload", t, func() {
		created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		id := sdk.NewID("6f1c7a2e-3b8d-4f7a-9c1e-2d5b8a0f4e11")

		Convey("A complete payload should round into a record", func() {
			record := payloadRecord(id, sdk.NewValueMap(map[string]any{
				metaKey:       int64(4),
				metaText:      "We decide to move",
				metaCreatedAt: created.Format(time.RFC3339Nano),
			}))

			So(record.Key, ShouldEqual, 4)
			So(record.VectorID, ShouldEqual, "6f1c7a2e-3b8d-4f7a-9c1e-2d5b8a0f4e11")
			So(record.Text, ShouldEqual, "We decide to move")
			So(record.CreatedAt.Equal(created), ShouldBeTrue)
		})

		Convey("A payload without a key should not claim one", func() {
			record := payloadRecord(id, sdk.NewValueMap(map[string]any{metaText: "stray"}))

			So(record.Key, ShouldEqual, FailedKey)
		})
	})
}
