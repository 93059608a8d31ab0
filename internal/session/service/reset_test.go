package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"propmaster/internal/identity/store/persisted"
	"propmaster/internal/platform/metrics"
	"propmaster/internal/session/models"
	"propmaster/internal/session/service/mocks"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

func TestReset_LeavesNoPersistedSession(t *testing.T) {
	for _, signOutErr := range []error{nil, dErrors.New(dErrors.CodeProviderUnavailable, "network down")} {
		name := "sign-out succeeds"
		if signOutErr != nil {
			name = "sign-out fails"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ctrl := gomock.NewController(t)
			provider := mocks.NewMockIdentityProvider(ctrl)
			roles := mocks.NewMockRoleStore(ctrl)
			store := persisted.NewInMemoryStore()
			m := metrics.New(prometheus.NewRegistry())

			svc := New(provider, roles, store, nil,
				WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
				WithMetrics(m))
			t.Cleanup(func() { _ = svc.Close() })

			sess := newSession("u1")
			require.NoError(t, store.Save(ctx, sess))
			provider.EXPECT().GetPersistedSession(gomock.Any()).DoAndReturn(store.Load)
			roles.EXPECT().GetRoleForSubject(gomock.Any(), domain.SubjectID("u1")).Return(domain.RoleTenant, nil)
			_, err := svc.Initialize(ctx)
			require.NoError(t, err)

			provider.EXPECT().SignOut(gomock.Any()).Return(signOutErr)
			if signOutErr != nil {
				provider.EXPECT().ForgetLocal(gomock.Any()).Return(nil)
			}
			st, err := svc.SignOut(ctx)
			require.NoError(t, err)

			assert.Nil(t, st.Session)
			assert.True(t, st.Role.IsZero())
			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Resets.WithLabelValues(string(models.ResetReasonUserLogout))))
		})
	}
}

func TestReset_CountsInconsistencyReason(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockIdentityProvider(ctrl)
	roles := mocks.NewMockRoleStore(ctrl)
	m := metrics.New(prometheus.NewRegistry())

	svc := New(provider, roles, persisted.NewInMemoryStore(), nil,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(m))
	t.Cleanup(func() { _ = svc.Close() })

	provider.EXPECT().GetPersistedSession(gomock.Any()).Return(newSession("u1"), nil)
	roles.EXPECT().GetRoleForSubject(gomock.Any(), gomock.Any()).Return(domain.Role(""), sentinel.ErrNotFound)
	provider.EXPECT().SignOut(gomock.Any()).Return(nil)

	st, err := svc.Initialize(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.PhaseReadyGuest, st.Phase())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Resets.WithLabelValues(string(models.ResetReasonProfileMissing))))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.BootstrapOutcomes.WithLabelValues(string(models.PhaseReadyGuest))))
}
